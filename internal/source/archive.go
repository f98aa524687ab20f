package source

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/klauspost/pgzip"
)

// openEntry reads one named entry out of an archive container.
func (r *Resolver) openEntry(ctx context.Context, container, entry string) (io.ReadCloser, error) {
	if archiveKind(container) == "zip" {
		return r.openZipEntry(ctx, container, entry)
	}
	return r.openTarEntry(ctx, container, entry)
}

// readContainer materializes the whole container. Zip needs random
// access, so streaming is not an option there.
func (r *Resolver) readContainer(ctx context.Context, container string) ([]byte, error) {
	rc, err := r.fetch(ctx, container)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, unavailable("read %s: %v", container, err)
	}
	return data, nil
}

func (r *Resolver) openZipEntry(ctx context.Context, container, entry string) (io.ReadCloser, error) {
	data, err := r.readContainer(ctx, container)
	if err != nil {
		return nil, err
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, unavailable("open zip %s: %v", container, err)
	}
	for _, f := range zr.File {
		if f.Name != entry {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, unavailable("open %s in %s: %v", entry, container, err)
		}
		return rc, nil
	}
	return nil, unavailable("entry %s not found in %s", entry, container)
}

func (r *Resolver) openTarEntry(ctx context.Context, container, entry string) (io.ReadCloser, error) {
	src, closers, err := r.openTarStream(ctx, container)
	if err != nil {
		return nil, err
	}
	tr := tar.NewReader(src)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			closeAll(closers)
			return nil, unavailable("read tar %s: %v", container, err)
		}
		if hdr.Typeflag != tar.TypeReg || hdr.Name != entry {
			continue
		}
		return &readCloser{Reader: tr, closers: closers}, nil
	}
	closeAll(closers)
	return nil, unavailable("entry %s not found in %s", entry, container)
}

// openTarStream fetches the container and undoes the gzip layer for
// .tar.gz and .tgz.
func (r *Resolver) openTarStream(ctx context.Context, container string) (io.Reader, []io.Closer, error) {
	rc, err := r.fetch(ctx, container)
	if err != nil {
		return nil, nil, err
	}
	if archiveKind(container) != "tgz" {
		return rc, []io.Closer{rc}, nil
	}
	gz, err := pgzip.NewReader(rc)
	if err != nil {
		rc.Close()
		return nil, nil, unavailable("gunzip %s: %v", container, err)
	}
	return gz, []io.Closer{gz, rc}, nil
}

func closeAll(closers []io.Closer) {
	for _, c := range closers {
		c.Close()
	}
}

// Entries lists the file entries of an archive whose names match a
// doublestar glob, in archive order. An empty glob matches everything.
func (r *Resolver) Entries(ctx context.Context, container, glob string) ([]string, error) {
	kind := archiveKind(container)
	if kind == "" {
		return nil, fmt.Errorf("%s is not an archive locator", container)
	}
	if glob == "" {
		glob = "**"
	}
	if kind == "zip" {
		return r.zipEntries(ctx, container, glob)
	}
	return r.tarEntries(ctx, container, glob)
}

func (r *Resolver) zipEntries(ctx context.Context, container, glob string) ([]string, error) {
	data, err := r.readContainer(ctx, container)
	if err != nil {
		return nil, err
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, unavailable("open zip %s: %v", container, err)
	}
	var names []string
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		ok, err := doublestar.Match(glob, f.Name)
		if err != nil {
			return nil, fmt.Errorf("entry pattern %q: %w", glob, err)
		}
		if ok {
			names = append(names, f.Name)
		}
	}
	return names, nil
}

func (r *Resolver) tarEntries(ctx context.Context, container, glob string) ([]string, error) {
	src, closers, err := r.openTarStream(ctx, container)
	if err != nil {
		return nil, err
	}
	defer closeAll(closers)
	tr := tar.NewReader(src)
	var names []string
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return names, nil
		}
		if err != nil {
			return nil, unavailable("read tar %s: %v", container, err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		ok, err := doublestar.Match(glob, hdr.Name)
		if err != nil {
			return nil, fmt.Errorf("entry pattern %q: %w", glob, err)
		}
		if ok {
			names = append(names, hdr.Name)
		}
	}
}
