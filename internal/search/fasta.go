package search

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// ErrFasta means the protein file could not be parsed
var ErrFasta = errors.New("search: malformed fasta")

// Protein is one FASTA record
type Protein struct {
	Accession string // first word of the header
	Sequence  string
}

// ReadFasta reads all records of a FASTA file. Sequences are upper cased
// and may span lines.
func ReadFasta(r io.Reader) ([]Protein, error) {
	var proteins []Protein
	var seq strings.Builder
	accession := ""
	flush := func() {
		if accession != "" {
			proteins = append(proteins, Protein{Accession: accession, Sequence: seq.String()})
		}
		seq.Reset()
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		switch {
		case text == "" || strings.HasPrefix(text, ";"):
			continue
		case strings.HasPrefix(text, ">"):
			flush()
			fields := strings.Fields(text[1:])
			if len(fields) == 0 {
				return nil, fmt.Errorf("%w: empty header on line %d", ErrFasta, line)
			}
			accession = fields[0]
		default:
			if accession == "" {
				return nil, fmt.Errorf("%w: sequence before first header on line %d", ErrFasta, line)
			}
			seq.WriteString(strings.ToUpper(text))
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	flush()
	return proteins, nil
}

// ReadFastaFile reads the FASTA file at path
func ReadFastaFile(path string) ([]Protein, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	proteins, err := ReadFasta(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return proteins, nil
}
