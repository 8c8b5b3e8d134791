package bundle

import (
	"archive/tar"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/crypto/blake2b"
)

// Pack writes a distributable tar.gz of an assembled staging
// directory. Headers are normalized (no owner, no timestamps) so
// packing the same tree twice yields the same bytes, and Sum records
// the digest of the compressed stream.
type Pack struct {
	Sum []byte
}

func (p *Pack) Pack(dir string, w io.Writer) error {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return err
	}

	var files []string

	err = filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		switch info.Mode() & os.ModeType {
		case 0, os.ModeSymlink:
			files = append(files, path)
		}

		return nil
	})
	if err != nil {
		return err
	}

	sort.Strings(files)

	h, _ := blake2b.New256(nil)

	gz := gzip.NewWriter(io.MultiWriter(w, h))

	tw := tar.NewWriter(gz)

	for _, file := range files {
		err = p.writeEntry(tw, dir, file)
		if err != nil {
			return err
		}
	}

	err = tw.Close()
	if err != nil {
		return err
	}

	err = gz.Close()
	if err != nil {
		return err
	}

	p.Sum = h.Sum(nil)

	return nil
}

func (p *Pack) writeEntry(tw *tar.Writer, dir, file string) error {
	fi, err := os.Lstat(file)
	if err != nil {
		return err
	}

	var link string

	if fi.Mode()&os.ModeSymlink != 0 {
		link, err = os.Readlink(file)
		if err != nil {
			return err
		}
	}

	hdr, err := tar.FileInfoHeader(fi, link)
	if err != nil {
		return err
	}

	hdr.Uid = 0
	hdr.Gid = 0
	hdr.Uname = ""
	hdr.Gname = ""
	hdr.AccessTime = time.Time{}
	hdr.ChangeTime = time.Time{}
	hdr.ModTime = time.Time{}
	hdr.Name = file[len(dir)+1:]
	hdr.Format = tar.FormatPAX

	err = tw.WriteHeader(hdr)
	if err != nil {
		return errors.Wrapf(err, "writing header for %s", hdr.Name)
	}

	if link != "" {
		return nil
	}

	f, err := os.Open(file)
	if err != nil {
		return err
	}

	defer f.Close()

	_, err = io.Copy(tw, f)

	return errors.Wrapf(err, "archiving %s", hdr.Name)
}
