// Package mzidentml reads peptide identifications from mzIdentML files
package mzidentml

import (
	"encoding/xml"
	"errors"
)

// Types for parsing mzIdentML

// MzIdentML holds only the part of mzIdentML files
// in which we are interrested
type MzIdentML struct {
	seqID2PepIdx map[string]int
	identList    []identRef
	content      mzIdentMLContent
}

type identRef struct {
	specIDIdx     int // Index into SpectrumIdentificationResult
	specResultIdx int // Index into SpectrumIdentificationItem
}

// Modification of a single residue. Location 0 is the N-terminus,
// 1..n the residues and n+1 the C-terminus.
type Modification struct {
	Location int
	Residues string
	Delta    float64
}

// Identification is one peptide-spectrum match
type Identification struct {
	SpectrumID     string // native id of the scan
	Sequence       string
	PeptideID      string
	Rank           int
	Charge         int
	ExperimentalMz float64
	CalculatedMz   float64
	PassThreshold  bool
	Mods           []Modification
	RetentionTime  float64 // seconds, -1 if absent
	Cv             []CVParam
}

type mzIdentMLContent struct {
	XMLName                      xml.Name                       `xml:"MzIdentML"`
	Peptide                      []xmlPeptide                   `xml:"SequenceCollection>Peptide"`
	SpectrumIdentificationResult []spectrumIdentificationResult `xml:"DataCollection>AnalysisData>SpectrumIdentificationList>SpectrumIdentificationResult"`
}

type xmlPeptide struct {
	ID              string `xml:"id,attr"`
	PeptideSequence string
	Modification    []modification
}

type modification struct {
	Location int    `xml:"location,attr"`
	Residues string `xml:"residues,attr"`
	// Note: monoisotopicMassDelta is optional according the the schema, but
	// appears to be no other way to determine mass shift, as other
	// corresponding cvParam's don't carry this info either
	MonoisotopicMassDelta float64 `xml:"monoisotopicMassDelta,attr"`
}

type spectrumIdentificationResult struct {
	SpectrumID                 string `xml:"spectrumID,attr"`
	SpectrumIdentificationItem []spectrumIdentificationItem
	CvPar                      []CVParam `xml:"cvParam"`
}

type spectrumIdentificationItem struct {
	ChargeState              int       `xml:"chargeState,attr"`
	Rank                     int       `xml:"rank,attr"`
	PassThreshold            bool      `xml:"passThreshold,attr"`
	ExperimentalMassToCharge float64   `xml:"experimentalMassToCharge,attr"`
	CalculatedMassToCharge   float64   `xml:"calculatedMassToCharge,attr"`
	PeptideRef               string    `xml:"peptide_ref,attr"`
	CvPar                    []CVParam `xml:"cvParam"`
}

// CVParam is a controlled vocabulary term, scores are reported this way
type CVParam struct {
	Accession     string `xml:"accession,attr" json:"accession"`
	Name          string `xml:"name,attr" json:"name"`
	Value         string `xml:"value,attr" json:"value,omitempty"`
	UnitAccession string `xml:"unitAccession,attr" json:"-"`
}

var (
	// ErrInvalidIdentIndex means an identification index out of range was supplied
	ErrInvalidIdentIndex = errors.New("mzIdentML: invalid identification index")
	// ErrUnknownPeptide means an identification refers to a missing Peptide element
	ErrUnknownPeptide = errors.New("mzIdentML: unknown peptide reference")
)
