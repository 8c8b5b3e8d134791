package sumfile

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/mr-tron/base58"
	"golang.org/x/crypto/blake2b"
)

type hashedEntity struct {
	hash   []byte
	entity string
	algo   string
}

// Sumfile records the digests of released bundle artifacts, one line
// per entity: "algo:hash entity". It gives a release tree a
// verifiable fingerprint.
type Sumfile struct {
	entities []hashedEntity
}

func (s *Sumfile) Load(r io.Reader) error {
	br := bufio.NewReader(r)

	for {
		line, err := br.ReadBytes('\n')
		if err != nil {
			if err == io.EOF {
				break
			}

			return err
		}

		colon := bytes.IndexByte(line, ':')
		if colon == -1 {
			continue
		}

		space := bytes.IndexByte(line, ' ')
		if space == -1 {
			continue
		}

		algo := string(line[:colon])

		hash := string(line[colon+1 : space])

		entity := string(bytes.TrimSpace(line[space+1:]))

		b, err := base58.Decode(hash)
		if err != nil {
			return err
		}

		s.entities = append(s.entities, hashedEntity{
			entity: entity,
			algo:   algo,
			hash:   b,
		})
	}

	return nil
}

func (s *Sumfile) Add(entity, algo string, h []byte) (string, error) {
	s.entities = append(s.entities, hashedEntity{
		algo:   algo,
		hash:   h,
		entity: entity,
	})

	sort.Slice(s.entities, func(i, j int) bool {
		return s.entities[i].entity < s.entities[j].entity
	})

	return algo + ":" + base58.Encode(h), nil
}

func (s *Sumfile) Save(w io.Writer) error {
	for _, he := range s.entities {
		sh := base58.Encode(he.hash)
		fmt.Fprintf(w, "%s:%s %s\n", he.algo, sh, he.entity)
	}

	return nil
}

func (s *Sumfile) Lookup(entity string) (string, []byte, bool) {
	idx := sort.Search(len(s.entities), func(i int) bool {
		return s.entities[i].entity >= entity
	})

	if idx == len(s.entities) {
		return "", nil, false
	}

	if s.entities[idx].entity == entity {
		return s.entities[idx].algo, s.entities[idx].hash, true
	}

	return "", nil, false
}

// DigestTree fingerprints a directory: every regular file's path and
// content feed one blake2b digest in sorted order, so two trees with
// the same digest hold the same files.
func DigestTree(dir string) ([]byte, error) {
	var files []string

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if info.Mode()&os.ModeType == 0 {
			files = append(files, path)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(files)

	h, _ := blake2b.New256(nil)

	for _, file := range files {
		rel, err := filepath.Rel(dir, file)
		if err != nil {
			rel = file
		}

		h.Write([]byte(rel))
		h.Write([]byte{0})

		f, err := os.Open(file)
		if err != nil {
			return nil, err
		}

		_, err = io.Copy(h, f)
		f.Close()
		if err != nil {
			return nil, err
		}
	}

	return h.Sum(nil), nil
}
