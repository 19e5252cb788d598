package mzml

import (
	"bytes"
	"compress/gzip"
	"compress/zlib"
	"encoding/base64"
	"encoding/binary"
	"encoding/xml"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"golang.org/x/net/html/charset"

	"github.com/524D/mzannotate/internal/spectrum"
)

// Read reads mzML file from an io.Reader
func Read(reader io.Reader) (MzML, error) {
	var mzML MzML

	d := xml.NewDecoder(reader)
	d.CharsetReader = charset.NewReaderLabel

	// We are only interested in mzML content, so skip over indexedmzML
	// and everything else
	found := false
	for {
		t, tokenErr := d.Token()
		if tokenErr != nil {
			if tokenErr == io.EOF {
				break
			}
			return mzML, tokenErr
		}
		if t, ok := t.(xml.StartElement); ok && t.Name.Local == "mzML" {
			if err := d.DecodeElement(&mzML.content, &t); err != nil {
				return mzML, err
			}
			found = true
		}
	}
	if !found {
		return mzML, ErrNoContent
	}

	err := mzML.traverseScan()
	return mzML, err
}

// ReadFile reads an mzML file from disk. Files ending in .gz are
// decompressed on the fly.
func ReadFile(path string) (MzML, error) {
	f, err := os.Open(path)
	if err != nil {
		return MzML{}, err
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(strings.ToLower(path), ".gz") {
		z, err := gzip.NewReader(f)
		if err != nil {
			return MzML{}, fmt.Errorf("%s: %w", path, err)
		}
		defer z.Close()
		r = z
	}
	m, err := Read(r)
	if err != nil {
		return m, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

type arrayKind int

const (
	otherArray arrayKind = iota
	mzArray
	intensityArray
)

// binaryDataPars decodes the CV terms in a mzML binarydata section
//
// CV Terms for binary data compression
// MS:1000574 zlib compression
// MS:1000576 No Compression
// MS:1002312 MS-Numpress linear prediction compression
// MS:1002313 MS-Numpress positive integer compression
// MS:1002314 MS-Numpress short logged float compression
// MS:1002746 MS-Numpress linear prediction compression followed by zlib compression
// MS:1002747 MS-Numpress positive integer compression followed by zlib compression
// MS:1002748 MS-Numpress short logged float compression followed by zlib compression
//
// CV Terms for binary data array types
// MS:1000514 m/z array
// MS:1000515 intensity array
//
// CV Terms for binary-data-type
// MS:1000521 32-bit float
// MS:1000523 64-bit float
func binaryDataPars(b *binaryDataArray) (zlibCompression bool, bits64 bool, kind arrayKind, err error) {
	for _, cvParam := range b.CvPar {
		switch cvParam.Accession {
		case `MS:1000574`:
			zlibCompression = true
		case `MS:1000514`:
			kind = mzArray
		case `MS:1000515`:
			kind = intensityArray
		case `MS:1000523`:
			bits64 = true
		case `MS:1002312`, `MS:1002313`, `MS:1002314`,
			`MS:1002746`, `MS:1002747`, `MS:1002748`:
			return false, false, otherArray,
				fmt.Errorf("%w (CV term %s)", ErrUnsupportedCompression, cvParam.Accession)
		}
	}
	return zlibCompression, bits64, kind, nil
}

// decodeArray returns the values of an m/z or intensity array.
// Other arrays are skipped and return nil.
func decodeArray(b *binaryDataArray) (arrayKind, []float64, error) {
	zlibCompression, bits64, kind, err := binaryDataPars(b)
	if err != nil || kind == otherArray {
		return kind, nil, err
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(b.Binary))
	if err != nil {
		return kind, nil, err
	}
	if zlibCompression {
		z, err := zlib.NewReader(bytes.NewReader(data))
		if err != nil {
			return kind, nil, err
		}
		defer z.Close()
		if data, err = io.ReadAll(z); err != nil {
			return kind, nil, err
		}
	}
	var values []float64
	if bits64 {
		cnt := len(data) / 8
		values = make([]float64, cnt)
		for i := 0; i < cnt; i++ {
			values[i] = math.Float64frombits(binary.LittleEndian.Uint64(data[i*8:]))
		}
	} else {
		cnt := len(data) / 4
		values = make([]float64, cnt)
		for i := 0; i < cnt; i++ {
			values[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:])))
		}
	}
	return kind, values, nil
}

// NumSpecs returns the number of spectra
func (f *MzML) NumSpecs() int {
	return len(f.content.Run.SpectrumList.Spectrum)
}

// RetentionTime returns the retention time of a spectrum in seconds
func (f *MzML) RetentionTime(scanIndex int) (float64, error) {
	if scanIndex < 0 || scanIndex >= f.NumSpecs() {
		return 0.0, ErrInvalidScanIndex
	}
	for _, scan := range f.content.Run.SpectrumList.Spectrum[scanIndex].ScanList.Scan {
		for _, cvParam := range scan.CvPar {
			if cvParam.Accession == "MS:1000016" {
				retentionTime, err := strconv.ParseFloat(cvParam.Value, 64)
				// Check if the retention time is in minutes, otherwise assume it's seconds
				if cvParam.UnitAccession == "UO:0000031" ||
					cvParam.UnitAccession == "MS:1000038" {
					retentionTime *= 60
				}
				return retentionTime, err
			}
		}
	}
	return -1.0, nil
}

// IonInjectionTime returns the ion injection time of a spectrum in ms,
// or NaN is not found
func (f *MzML) IonInjectionTime(scanIndex int) (float64, error) {
	if scanIndex < 0 || scanIndex >= f.NumSpecs() {
		return 0.0, ErrInvalidScanIndex
	}
	for _, scan := range f.content.Run.SpectrumList.Spectrum[scanIndex].ScanList.Scan {
		for _, cvParam := range scan.CvPar {
			if cvParam.Accession == "MS:1000927" {
				t, err := strconv.ParseFloat(cvParam.Value, 64)
				if cvParam.UnitAccession != "" && cvParam.UnitAccession != "UO:0000028" {
					return t, ErrUnknownUnit
				}
				return t, err
			}
		}
	}
	return math.NaN(), nil
}

// ReadScan returns the m/z and intensity arrays of a scan.
// scanIndex is the sequence number of the scan in the mzML file,
// not the scan number.
func (f *MzML) ReadScan(scanIndex int) (mz []float64, intensity []float64, err error) {
	if scanIndex < 0 || scanIndex >= f.NumSpecs() {
		return nil, nil, ErrInvalidScanIndex
	}
	s := &f.content.Run.SpectrumList.Spectrum[scanIndex]
	for i := range s.BinaryDataArrayList.BinaryDataArray {
		kind, values, err := decodeArray(&s.BinaryDataArrayList.BinaryDataArray[i])
		if err != nil {
			return nil, nil, fmt.Errorf("scan %s: %w", s.ID, err)
		}
		switch kind {
		case mzArray:
			mz = values
		case intensityArray:
			intensity = values
		}
	}
	if len(mz) != len(intensity) {
		return nil, nil, fmt.Errorf("scan %s: %d m/z values, %d intensities: %w",
			s.ID, len(mz), len(intensity), ErrArrayLength)
	}
	return mz, intensity, nil
}

// Centroid returns true is the spectrum contains centroid peaks
func (f *MzML) Centroid(scanIndex int) (bool, error) {
	if scanIndex < 0 || scanIndex >= f.NumSpecs() {
		return false, ErrInvalidScanIndex
	}
	for _, cvParam := range f.content.Run.SpectrumList.Spectrum[scanIndex].CvPar {
		if cvParam.Accession == "MS:1000127" { // centroid spectrum
			return true, nil
		}
	}
	return false, nil
}

// MSLevel returns the MS level of a scan
func (f *MzML) MSLevel(scanIndex int) (int, error) {
	if scanIndex < 0 || scanIndex >= f.NumSpecs() {
		return 0, ErrInvalidScanIndex
	}
	for _, cvParam := range f.content.Run.SpectrumList.Spectrum[scanIndex].CvPar {
		if cvParam.Accession == "MS:1000511" { // ms level
			msLevel, err := strconv.ParseInt(cvParam.Value, 10, 64)
			return int(msLevel), err
		}
	}
	return 1, nil // If nothing else, guess it's MS1
}

// Precursors returns the precursors of a scan. MS1 scans have none.
//
// MS:1000744 selected ion m/z
// MS:1000041 charge state
// MS:1000827 isolation window target m/z
func (f *MzML) Precursors(scanIndex int) ([]spectrum.Precursor, error) {
	if scanIndex < 0 || scanIndex >= f.NumSpecs() {
		return nil, ErrInvalidScanIndex
	}
	var precursors []spectrum.Precursor
	for _, pl := range f.content.Run.SpectrumList.Spectrum[scanIndex].PrecursorList {
		for _, xp := range pl.Precursor {
			var p spectrum.Precursor
			var err error
			for _, cvParam := range xp.IsolationWindow.CvPar {
				if cvParam.Accession == "MS:1000827" {
					if p.IsolationMz, err = strconv.ParseFloat(cvParam.Value, 64); err != nil {
						return nil, err
					}
				}
			}
			for _, ion := range xp.SelectedIonList.SelectedIon {
				for _, cvParam := range ion.CvPar {
					switch cvParam.Accession {
					case "MS:1000744":
						if p.Mz, err = strconv.ParseFloat(cvParam.Value, 64); err != nil {
							return nil, err
						}
					case "MS:1000041":
						if p.Charge, err = strconv.Atoi(cvParam.Value); err != nil {
							return nil, err
						}
					}
				}
			}
			if p.Mz == 0 {
				p.Mz = p.IsolationMz
			}
			precursors = append(precursors, p)
		}
	}
	return precursors, nil
}

// ScanNumber returns the scan number of a scan, taken from the "scan="
// field of its id. Ids without that field use the scan index.
func (f *MzML) ScanNumber(scanIndex int) (int, error) {
	id, err := f.ScanID(scanIndex)
	if err != nil {
		return 0, err
	}
	return scanNumber(id, scanIndex)
}

func scanNumber(id string, scanIndex int) (int, error) {
	for _, field := range strings.Fields(id) {
		if v, ok := strings.CutPrefix(field, "scan="); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				return 0, fmt.Errorf("%w: %q", ErrInvalidScanID, id)
			}
			return n, nil
		}
	}
	return scanIndex, nil
}

// Spectra converts all scans in the file
func (f *MzML) Spectra() ([]spectrum.RawSpectrum, error) {
	spectra := make([]spectrum.RawSpectrum, 0, f.NumSpecs())
	for i := 0; i < f.NumSpecs(); i++ {
		s, err := f.Spectrum(i)
		if err != nil {
			return nil, err
		}
		spectra = append(spectra, s)
	}
	return spectra, nil
}

// Spectrum converts a single scan
func (f *MzML) Spectrum(scanIndex int) (spectrum.RawSpectrum, error) {
	var s spectrum.RawSpectrum
	var err error

	if s.NativeID, err = f.ScanID(scanIndex); err != nil {
		return s, err
	}
	s.Index = scanIndex
	if s.ID, err = f.ScanNumber(scanIndex); err != nil {
		return s, err
	}
	if s.Level, err = f.MSLevel(scanIndex); err != nil {
		return s, fmt.Errorf("scan %s: ms level: %w", s.NativeID, err)
	}
	if s.RetentionTime, err = f.RetentionTime(scanIndex); err != nil {
		return s, fmt.Errorf("scan %s: retention time: %w", s.NativeID, err)
	}
	if s.IonInjectionTime, err = f.IonInjectionTime(scanIndex); err != nil {
		return s, fmt.Errorf("scan %s: ion injection time: %w", s.NativeID, err)
	}
	if s.Centroid, err = f.Centroid(scanIndex); err != nil {
		return s, err
	}
	if s.Precursors, err = f.Precursors(scanIndex); err != nil {
		return s, fmt.Errorf("scan %s: precursor: %w", s.NativeID, err)
	}
	s.Mz, s.Intensity, err = f.ReadScan(scanIndex)
	return s, err
}

// traverseScan traverses all scans and fills f.index2id to make scans
// accessible
func (f *MzML) traverseScan() error {
	f.index2id = make([]string, f.NumSpecs())

	for i := range f.content.Run.SpectrumList.Spectrum {
		if err := f.addSpecToIndex(i); err != nil {
			return err
		}
	}
	return nil
}

func (f *MzML) addSpecToIndex(i int) error {
	if i != f.content.Run.SpectrumList.Spectrum[i].Index {
		return ErrInvalidScanIndex
	}
	f.index2id[i] = f.content.Run.SpectrumList.Spectrum[i].ID
	return nil
}

// ScanID converts a scan index (used to access the scan data) into a scan id
// (used in the mzML file)
func (f *MzML) ScanID(scanIndex int) (string, error) {
	if scanIndex >= 0 && scanIndex < f.NumSpecs() {
		return f.index2id[scanIndex], nil
	}
	return "", ErrInvalidScanIndex
}
