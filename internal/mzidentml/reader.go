package mzidentml

import (
	"encoding/xml"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"

	"golang.org/x/net/html/charset"

	"github.com/524D/mzannotate/internal/peptide"
)

// Read reads mzIdentML content from io.reader
func Read(reader io.Reader) (MzIdentML, error) {
	var mzIdentML MzIdentML
	d := xml.NewDecoder(reader)
	d.CharsetReader = charset.NewReaderLabel
	err := d.Decode(&mzIdentML.content)
	if err != nil {
		return mzIdentML, err
	}
	mzIdentML.buildPepID2Sequence()
	mzIdentML.buildIdentList()
	return mzIdentML, nil
}

// ReadFile reads an mzIdentML file from disk
func ReadFile(path string) (MzIdentML, error) {
	f, err := os.Open(path)
	if err != nil {
		return MzIdentML{}, err
	}
	defer f.Close()
	m, err := Read(f)
	if err != nil {
		return m, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

func (m *MzIdentML) buildPepID2Sequence() {
	m.seqID2PepIdx = make(map[string]int, len(m.content.Peptide))
	for i, p := range m.content.Peptide {
		m.seqID2PepIdx[p.ID] = i
	}
}

func (m *MzIdentML) buildIdentList() {
	for i := range m.content.SpectrumIdentificationResult {
		for j := range m.content.SpectrumIdentificationResult[i].SpectrumIdentificationItem {
			m.identList = append(m.identList, identRef{specIDIdx: i, specResultIdx: j})
		}
	}
}

// NumIdents returns the total number of identifications in the mzIdentML file
// Note that for some spectra, multiple identifications may be present
// The identifications can be accessed using the Ident() method, which takes
// an index as argument. The index runs from 0 to NumIdents()-1
func (m *MzIdentML) NumIdents() int {
	return len(m.identList)
}

// Ident returns a spectrum identification from the mzIdentML file.
// Parameter i is the index of the identification to return. The index runs
// from 0 to NumIdents()-1
func (m *MzIdentML) Ident(i int) (Identification, error) {
	var ident Identification

	if i < 0 || i >= len(m.identList) {
		return ident, ErrInvalidIdentIndex
	}
	result := &m.content.SpectrumIdentificationResult[m.identList[i].specIDIdx]
	item := &result.SpectrumIdentificationItem[m.identList[i].specResultIdx]

	pepIdx, ok := m.seqID2PepIdx[item.PeptideRef]
	if !ok {
		return ident, fmt.Errorf("%w: %q", ErrUnknownPeptide, item.PeptideRef)
	}
	pep := &m.content.Peptide[pepIdx]
	ident.SpectrumID = result.SpectrumID
	ident.Sequence = pep.PeptideSequence
	ident.PeptideID = pep.ID
	ident.Rank = item.Rank
	ident.Charge = item.ChargeState
	ident.ExperimentalMz = item.ExperimentalMassToCharge
	ident.CalculatedMz = item.CalculatedMassToCharge
	ident.PassThreshold = item.PassThreshold
	for _, mod := range pep.Modification {
		ident.Mods = append(ident.Mods, Modification{
			Location: mod.Location,
			Residues: mod.Residues,
			Delta:    mod.MonoisotopicMassDelta,
		})
	}
	rt, err := retentionTime(result.CvPar)
	if err != nil {
		return ident, err
	}
	ident.RetentionTime = rt
	// Collect CV terms/values for the identification, the scores are in there
	ident.Cv = append(ident.Cv, item.CvPar...)

	return ident, nil
}

// BySpectrum returns all identifications grouped by spectrum native id,
// in file order.
func (m *MzIdentML) BySpectrum() (map[string][]Identification, error) {
	idents := make(map[string][]Identification)
	for i := 0; i < m.NumIdents(); i++ {
		ident, err := m.Ident(i)
		if err != nil {
			return nil, err
		}
		idents[ident.SpectrumID] = append(idents[ident.SpectrumID], ident)
	}
	return idents, nil
}

// retentionTime returns the retention time in seconds, or -1.
// There are multiple CV terms that can be used to report the
// retention time. In order of decreasing preference we use:
// 1. MS:1000016 - scan start time
// 2. MS:1000894 - retention time
// 3. MS:1000826 - elution time
// 4. MS:1001114 - retention time (deprecated)
func retentionTime(cvs []CVParam) (float64, error) {
	prio := map[string]int{
		"MS:1000016": 1,
		"MS:1000894": 2,
		"MS:1000826": 3,
		"MS:1001114": 4,
	}
	best := math.MaxInt32
	rt := float64(-1)
	for _, cv := range cvs {
		p, ok := prio[cv.Accession]
		if !ok || p >= best {
			continue
		}
		t, err := strconv.ParseFloat(cv.Value, 64)
		if err != nil {
			return -1, err
		}
		// Check if the retention time is in minutes, otherwise assume it's seconds
		if cv.UnitAccession == "UO:0000031" || cv.UnitAccession == "MS:1000038" {
			t *= 60
		}
		best = p
		rt = t
	}
	return rt, nil
}

// Peptide builds the modified peptide of an identification
func (ident *Identification) Peptide() (*peptide.Peptide, error) {
	p, err := peptide.New(ident.Sequence)
	if err != nil {
		return nil, err
	}
	nterm := 0.0
	hasNterm := false
	for _, mod := range ident.Mods {
		switch {
		case mod.Location <= 0:
			nterm += mod.Delta
			hasNterm = true
		case mod.Location > p.Len():
			// C-terminal modifications are carried by the last residue
			err = p.SiteMod(p.Len()-1, mod.Delta)
		default:
			err = p.SiteMod(mod.Location-1, mod.Delta)
		}
		if err != nil {
			return nil, err
		}
	}
	if hasNterm {
		p.SetNtermMod(nterm)
	}
	return p, nil
}
