// Package mzml reads the scans of an mzML file
package mzml

import (
	"encoding/xml"
	"errors"
)

// MzML wraps the contents of the mzML file
type MzML struct {
	content  mzMLContent
	index2id []string
}

// The part of the mzML content that we read
type mzMLContent struct {
	XMLName xml.Name `xml:"http://psi.hupo.org/ms/mzml mzML"`
	Run     run      `xml:"run"`
}

type run struct {
	ID           string       `xml:"id,attr"`
	SpectrumList spectrumList `xml:"spectrumList"`
}

type spectrumList struct {
	Count    int           `xml:"count,attr"`
	Spectrum []xmlSpectrum `xml:"spectrum"`
}

type xmlSpectrum struct {
	Index               int                 `xml:"index,attr"`
	ID                  string              `xml:"id,attr"`
	DefaultArrayLength  int64               `xml:"defaultArrayLength,attr"`
	CvPar               []CVParam           `xml:"cvParam"`
	ScanList            scanList            `xml:"scanList"`
	PrecursorList       []precursorList     `xml:"precursorList"`
	BinaryDataArrayList binaryDataArrayList `xml:"binaryDataArrayList"`
}

type binaryDataArrayList struct {
	Count           int               `xml:"count,attr"`
	BinaryDataArray []binaryDataArray `xml:"binaryDataArray"`
}

type binaryDataArray struct {
	EncodedLength int       `xml:"encodedLength,attr"`
	CvPar         []CVParam `xml:"cvParam"`
	Binary        string    `xml:"binary"`
}

type scanList struct {
	Scan []scan `xml:"scan"`
}

type scan struct {
	CvPar []CVParam `xml:"cvParam"`
}

type precursorList struct {
	Precursor []xmlPrecursor `xml:"precursor"`
}

type xmlPrecursor struct {
	SpectrumRef     string          `xml:"spectrumRef,attr"`
	IsolationWindow isolationWindow `xml:"isolationWindow"`
	SelectedIonList selectedIonList `xml:"selectedIonList"`
}

type isolationWindow struct {
	CvPar []CVParam `xml:"cvParam"`
}

type selectedIonList struct {
	SelectedIon []selectedIon `xml:"selectedIon"`
}

type selectedIon struct {
	CvPar []CVParam `xml:"cvParam"`
}

// CVParam contains values and attributes of a mzML Controlled Vocabulary term
// (http://www.peptideatlas.org/tmp/mzML1.1.0.html)
type CVParam struct {
	Accession     string `xml:"accession,attr"`
	Name          string `xml:"name,attr"`
	Value         string `xml:"value,attr"`
	UnitCvRef     string `xml:"unitCvRef,attr"`
	UnitAccession string `xml:"unitAccession,attr"`
	UnitName      string `xml:"unitName,attr"`
}

var (
	// ErrInvalidScanID means an invalid scan id is supplied
	ErrInvalidScanID = errors.New("MzML: invalid scan id")
	// ErrInvalidScanIndex means an invalid scan index is supplied
	ErrInvalidScanIndex = errors.New("MzML: invalid scan index")
	// ErrUnknownUnit means the file contains a unit that the software cannot handle
	ErrUnknownUnit = errors.New("MzML: can't handle unit")
	// ErrUnsupportedCompression means the binary data uses MS-Numpress
	ErrUnsupportedCompression = errors.New("MzML: compression type not supported")
	// ErrArrayLength means the m/z and intensity arrays differ in length
	ErrArrayLength = errors.New("MzML: binary array length mismatch")
	// ErrNoContent means no mzML element was found
	ErrNoContent = errors.New("MzML: no mzML content")
)
