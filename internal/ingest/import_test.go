package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/dgallion1/xmlgest/internal/graph"
	"github.com/dgallion1/xmlgest/internal/parser"
	"github.com/dgallion1/xmlgest/internal/source"
)

func TestLoader_ImportBooks(t *testing.T) {
	l := testLoader(t, "")
	store := graph.NewMemStore()
	opts := DefaultGraphOptions()
	opts.CreateNextWordRelationships = true

	sum, err := l.Import(context.Background(), "books.xml", store, opts)
	if err != nil {
		t.Fatalf("import: %v", err)
	}

	if got := store.NodeCount(graph.LabelDocument); got != 1 {
		t.Errorf("expected 1 document node, got %d", got)
	}
	// catalog, 12 books, 73 fields (bk101 carries a second author).
	if got := store.NodeCount(graph.LabelTag); got != 86 {
		t.Errorf("expected 86 tag nodes, got %d", got)
	}
	if got := store.RelCount(graph.RelFirstChild); got != 14 {
		t.Errorf("expected 14 FIRST_CHILD_OF, got %d", got)
	}
	if got := store.RelCount(graph.RelLastChild); got != 14 {
		t.Errorf("expected 14 LAST_CHILD_OF, got %d", got)
	}
	if got := store.RelCount(graph.RelNextSibling); got != 72 {
		t.Errorf("expected 72 NEXT_SIBLING, got %d", got)
	}

	total := store.NodeCount("")
	if got := store.RelCount(graph.RelNext); got != total-1 {
		t.Errorf("expected NEXT to thread all %d nodes, got %d edges", total, got)
	}
	words := store.NodeCount(graph.LabelWord)
	if words == 0 {
		t.Fatalf("expected word nodes from book text")
	}
	if got := store.RelCount(graph.RelNextWord); got != words-1 {
		t.Errorf("expected NEXT_WORD chain of length %d, got %d", words-1, got)
	}

	root, ok := store.Node(sum.Root)
	if !ok || root.Label != graph.LabelDocument {
		t.Fatalf("expected summary root to be the document node, got %+v", root)
	}
	if root.Props["url"] != "books.xml" {
		t.Errorf("expected document url books.xml, got %v", root.Props["url"])
	}
	if sum.NodeTotal != int64(total) {
		t.Errorf("expected summary node total %d, got %d", total, sum.NodeTotal)
	}
}

func TestLoader_ImportCharacterMode(t *testing.T) {
	l := testLoader(t, "")
	ctx := context.Background()

	wordStore := graph.NewMemStore()
	if _, err := l.Import(ctx, "books.xml", wordStore, DefaultGraphOptions()); err != nil {
		t.Fatalf("word-mode import: %v", err)
	}
	charStore := graph.NewMemStore()
	charOpts := DefaultGraphOptions()
	charOpts.ConnectCharacters = true
	if _, err := l.Import(ctx, "books.xml", charStore, charOpts); err != nil {
		t.Fatalf("character-mode import: %v", err)
	}

	for _, label := range []string{graph.LabelDocument, graph.LabelTag, graph.LabelProcInst} {
		if w, c := wordStore.NodeCount(label), charStore.NodeCount(label); w != c {
			t.Errorf("%s count differs across modes: %d vs %d", label, w, c)
		}
	}
	if got := charStore.NodeCount(graph.LabelWord); got != 0 {
		t.Errorf("expected no word nodes in character mode, got %d", got)
	}
	chars := charStore.NodeCount(graph.LabelCharacters)
	if chars == 0 {
		t.Fatalf("expected characters nodes from book text")
	}
	if got := charStore.RelCount(graph.RelNextEntity); got != chars-1 {
		t.Errorf("expected NE chain of length %d, got %d", chars-1, got)
	}
	// Word mode without the chain flag creates no chain at all.
	if got := wordStore.RelCount(graph.RelNextWord); got != 0 {
		t.Errorf("expected no NEXT_WORD without the flag, got %d", got)
	}
}

func TestLoader_ImportSummary(t *testing.T) {
	dir := t.TempDir()
	doc := `<greeting situation="hello">terse text</greeting>`
	if err := os.WriteFile(filepath.Join(dir, "greeting.xml"), []byte(doc), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	l := testLoader(t, dir)
	store := graph.NewMemStore()
	opts := DefaultGraphOptions()
	opts.CreateNextWordRelationships = true

	sum, err := l.Import(context.Background(), "greeting.xml", store, opts)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if sum.Root != 1 {
		t.Errorf("expected root id 1, got %d", sum.Root)
	}
	wantNodes := map[string]int64{
		graph.LabelDocument: 1,
		graph.LabelTag:      1,
		graph.LabelWord:     2,
	}
	if !reflect.DeepEqual(sum.Nodes, wantNodes) {
		t.Errorf("expected nodes %v, got %v", wantNodes, sum.Nodes)
	}
	wantRels := map[string]int64{
		graph.RelNext:       3,
		graph.RelFirstChild: 1,
		graph.RelLastChild:  1,
		graph.RelNextWord:   1,
	}
	if !reflect.DeepEqual(sum.Rels, wantRels) {
		t.Errorf("expected relationships %v, got %v", wantRels, sum.Rels)
	}
	if sum.NodeTotal != 4 || sum.RelTotal != 6 {
		t.Errorf("expected totals 4 nodes and 6 relationships, got %d and %d", sum.NodeTotal, sum.RelTotal)
	}

	greeting, _ := store.Node(2)
	if greeting.Props["situation"] != "hello" {
		t.Errorf("expected attribute property on tag node, got %v", greeting.Props)
	}
}

func TestLoader_ImportFailSoftOnMissingSource(t *testing.T) {
	l := testLoader(t, "")
	store := graph.NewMemStore()

	if _, err := l.Import(context.Background(), "nope.xml", store, DefaultGraphOptions()); !errors.Is(err, source.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}

	opts := DefaultGraphOptions()
	opts.FailOnError = false
	sum, err := l.Import(context.Background(), "nope.xml", store, opts)
	if err != nil {
		t.Fatalf("expected soft failure, got %v", err)
	}
	if sum.NodeTotal != 0 || sum.RelTotal != 0 {
		t.Fatalf("expected empty summary, got %+v", sum)
	}
	if got := store.NodeCount(""); got != 0 {
		t.Fatalf("expected no mutations for unreadable source, got %d nodes", got)
	}
}

func TestLoader_ImportMalformedDocument(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "broken.xml"), []byte("<a><b></a>"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	l := testLoader(t, dir)

	_, err := l.Import(context.Background(), "broken.xml", graph.NewMemStore(), DefaultGraphOptions())
	var syn *parser.SyntaxError
	if !errors.As(err, &syn) {
		t.Fatalf("expected syntax error, got %v", err)
	}

	opts := DefaultGraphOptions()
	opts.FailOnError = false
	sum, err := l.Import(context.Background(), "broken.xml", graph.NewMemStore(), opts)
	if err != nil {
		t.Fatalf("expected soft failure, got %v", err)
	}
	if sum.NodeTotal != 0 {
		t.Fatalf("expected empty summary after soft parse failure, got %+v", sum)
	}
}

func TestLoader_ImportSecurityAlwaysFatal(t *testing.T) {
	dir := t.TempDir()
	bomb := `<!DOCTYPE z [
 <!ENTITY a "xxxxxxxxxx">
 <!ENTITY b "&a;&a;&a;&a;&a;&a;&a;&a;&a;&a;">
 <!ENTITY c "&b;&b;&b;&b;&b;&b;&b;&b;&b;&b;">
 <!ENTITY d "&c;&c;&c;&c;&c;&c;&c;&c;&c;&c;">
 <!ENTITY e "&d;&d;&d;&d;&d;&d;&d;&d;&d;&d;">
 <!ENTITY f "&e;&e;&e;&e;&e;&e;&e;&e;&e;&e;">
]>
<z>&f;</z>`
	if err := os.WriteFile(filepath.Join(dir, "bomb.xml"), []byte(bomb), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	l := testLoader(t, dir)

	opts := DefaultGraphOptions()
	opts.FailOnError = false
	_, err := l.Import(context.Background(), "bomb.xml", graph.NewMemStore(), opts)
	var sec *parser.SecurityError
	if !errors.As(err, &sec) {
		t.Fatalf("expected security violation to propagate, got %v", err)
	}
}
