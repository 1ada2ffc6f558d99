package trace

import (
	"bufio"
	"compress/flate"
	"compress/gzip"
	"compress/lzw"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zstd"
)

const (
	lzwLitwidth int = 8
)

// FrameInfo identifies one rotation frame in a history file: which window
// rotation it was, which replica produced it and at what simulation time.
type FrameInfo struct {
	Window  int
	Replica int
	Time    float64
}

//Write!
type Writer struct {
	f         *os.File
	h         io.WriteCloser
	nbins     int
	filename  string
	writeable bool
}

// NewWriter creates a rotation-history file. The suffix selects the codec:
// .erh is flate, .zerh zstd, .gerh gzip and .lerh lzw; anything else gets
// zstd. The grid geometry goes into the header so a reader can rebuild the
// bin coordinates; meta carries free-form metadata (only the first map is
// read). An optional compression level applies to the flate and gzip
// codecs.
func NewWriter(name string, nbins int, binWidth, sigma float64, meta map[string]string, compressionLevel ...int) (*Writer, error) {
	if nbins < 1 {
		return nil, Error{message: BadBins, filename: name, critical: true}
	}
	if binWidth <= 0 || sigma <= 0 {
		return nil, Error{message: BadGeometry, filename: name, critical: true}
	}
	level := flate.DefaultCompression
	if len(compressionLevel) > 0 {
		level = compressionLevel[0]
	}
	W := new(Writer)
	var err error
	W.f, err = os.Create(name)
	if err != nil {
		return nil, err
	}
	W.h, err = anyNewWriter(name, W.f, level)
	if err != nil {
		W.f.Close()
		return nil, Error{message: "Can't set up the compressor: " + err.Error(), filename: name, critical: true}
	}
	W.nbins = nbins
	W.filename = name
	W.writeable = true
	for k, v := range meta {
		if strings.ContainsAny(k+v, "=\n") || strings.HasPrefix(k, "*") {
			W.Close()
			return nil, Error{message: BadMetadata, filename: name, critical: true}
		}
		fmt.Fprintf(W.h, "%s=%s\n", k, v)
	}
	fmt.Fprintf(W.h, "** %d %v %v\n", nbins, binWidth, sigma)
	return W, nil
}

// WNext appends one rotation frame: the info line, then one bin value per
// line.
func (W *Writer) WNext(window []float64, info FrameInfo) error {
	if !W.writeable {
		return Error{message: HistUnIniWrite, filename: W.filename, deco: []string{"WNext"}, critical: true}
	}
	if len(window) != W.nbins {
		return Error{message: fmt.Sprintf("%d bins given, but %d expected", len(window), W.nbins), filename: W.filename, deco: []string{"WNext"}, critical: true}
	}
	fmt.Fprintf(W.h, "* %d %d %v\n", info.Window, info.Replica, info.Time)
	for _, v := range window {
		fmt.Fprintf(W.h, "%v\n", v)
	}
	return nil
}

// Bins returns the number of bins per frame.
func (W *Writer) Bins() int { return W.nbins }

// Close flushes and closes the file. The Writer can not be used afterwards.
// Closing twice is harmless.
func (W *Writer) Close() {
	if W == nil {
		return
	}
	if W.writeable {
		W.h.Close()
		W.f.Close()
	}
	W.writeable = false
}

//Read!
type Reader struct {
	f        *os.File
	unz      io.ReadCloser
	h        *bufio.Reader
	nbins    int
	binWidth float64
	sigma    float64
	filename string
	readable bool
	meta     map[string]string
}

//zstd's Decoder.Close returns nothing, so it doesn't satisfy io.ReadCloser
//on its own.
type zstdql struct {
	closeql func()
	*zstd.Decoder
}

func (z zstdql) Close() error {
	z.closeql()
	return nil
}

// New opens a rotation-history file for reading and returns the handle plus
// the free-form metadata written by NewWriter (nil if there was none). The
// codec comes from the suffix, like in NewWriter.
func New(name string) (*Reader, map[string]string, error) {
	R := new(Reader)
	R.nbins = -1 //just so we know if things don't work
	R.filename = name
	var err error
	R.f, err = os.Open(name)
	if err != nil {
		return nil, nil, err
	}
	R.unz, err = anyNewReader(name, bufio.NewReader(R.f))
	if err != nil {
		R.f.Close()
		return nil, nil, Error{message: "Can't set up the decompressor: " + err.Error(), filename: name, critical: true}
	}
	R.h = bufio.NewReader(R.unz)
	for {
		str, err := R.h.ReadString('\n')
		if err != nil {
			R.Close()
			return nil, nil, Error{message: "Can't read header: " + err.Error(), filename: name, deco: []string{"New"}, critical: true}
		}
		str = strings.TrimSuffix(str, "\n")
		if strings.HasPrefix(str, "**") {
			fields := strings.Fields(str)
			if len(fields) != 4 {
				R.Close()
				return nil, nil, Error{message: "Malformed geometry line: " + str, filename: name, deco: []string{"New"}, critical: true}
			}
			R.nbins, err = strconv.Atoi(fields[1])
			if err == nil {
				R.binWidth, err = strconv.ParseFloat(fields[2], 64)
			}
			if err == nil {
				R.sigma, err = strconv.ParseFloat(fields[3], 64)
			}
			if err != nil || R.nbins < 1 {
				R.Close()
				return nil, nil, Error{message: "Malformed geometry line: " + str, filename: name, deco: []string{"New"}, critical: true}
			}
			break
		}
		kv := strings.SplitN(str, "=", 2)
		if len(kv) != 2 {
			R.Close()
			return nil, nil, Error{message: "Malformed metadata line: " + str, filename: name, deco: []string{"New"}, critical: true}
		}
		if R.meta == nil {
			R.meta = make(map[string]string)
		}
		R.meta[kv[0]] = kv[1]
	}
	R.readable = true
	return R, R.meta, nil
}

// Readable returns true if it is possible to call Next on the handle.
func (R *Reader) Readable() bool { return R.readable }

// Bins returns the number of bins per frame.
func (R *Reader) Bins() int { return R.nbins }

// BinWidth returns the grid bin width recorded in the header.
func (R *Reader) BinWidth() float64 { return R.binWidth }

// Sigma returns the blur kernel width recorded in the header.
func (R *Reader) Sigma() float64 { return R.sigma }

// Meta returns the free-form metadata of the file, nil if there was none.
func (R *Reader) Meta() map[string]string { return R.meta }

// Next reads the next rotation frame into dst, which must have the file's
// bin count, and returns the frame's info line. When the history ends
// cleanly the returned error satisfies ensrest.LastRecordError, which is
// not an actual failure; use a type switch to tell the two apart. A nil dst
// skips the frame's values (they are still checked for shape).
func (R *Reader) Next(dst []float64) (*FrameInfo, error) {
	if !R.readable {
		return nil, Error{message: HistUnIniRead, filename: R.filename, deco: []string{"Next"}, critical: true}
	}
	if dst != nil && len(dst) != R.nbins {
		return nil, Error{message: NotEnoughSpace, filename: R.filename, deco: []string{"Next"}, critical: true}
	}
	str, err := R.h.ReadString('\n')
	if err != nil {
		if err == io.EOF {
			//nothing bad happened here, the history just ended.
			R.Close()
			return nil, newLastRecordError(R.filename, "Next")
		}
		return nil, Error{message: err.Error(), filename: R.filename, deco: []string{"Next"}, critical: true}
	}
	str = strings.TrimSuffix(str, "\n")
	if !strings.HasPrefix(str, "* ") {
		return nil, Error{message: "Expected a frame info line, got: " + str, filename: R.filename, deco: []string{"Next"}, critical: true}
	}
	fields := strings.Fields(str)
	if len(fields) != 4 {
		return nil, Error{message: "Malformed frame info line: " + str, filename: R.filename, deco: []string{"Next"}, critical: true}
	}
	info := new(FrameInfo)
	info.Window, err = strconv.Atoi(fields[1])
	if err == nil {
		info.Replica, err = strconv.Atoi(fields[2])
	}
	if err == nil {
		info.Time, err = strconv.ParseFloat(fields[3], 64)
	}
	if err != nil {
		return nil, Error{message: "Malformed frame info line: " + str, filename: R.filename, deco: []string{"Next"}, critical: true}
	}
	for i := 0; i < R.nbins; i++ {
		str, err = R.h.ReadString('\n')
		if err != nil {
			return nil, Error{message: "Frame truncated: " + err.Error(), filename: R.filename, deco: []string{"Next"}, critical: true}
		}
		v, err := strconv.ParseFloat(strings.TrimSuffix(str, "\n"), 64)
		if err != nil {
			return nil, Error{message: fmt.Sprintf("Can't parse bin %d: %s", i, err.Error()), filename: R.filename, deco: []string{"Next"}, critical: true}
		}
		if dst != nil {
			dst[i] = v
		}
	}
	return info, nil
}

// Close closes the handle and marks it unreadable.
func (R *Reader) Close() {
	if !R.readable && R.unz == nil {
		return
	}
	if R.unz != nil {
		R.unz.Close()
		R.unz = nil
	}
	R.f.Close()
	R.readable = false
}

//the codec is picked from the file suffix in both directions.
func anyNewWriter(name string, a io.Writer, level int) (io.WriteCloser, error) {
	switch {
	case strings.HasSuffix(name, ".lerh"):
		return lzw.NewWriter(a, lzw.MSB, lzwLitwidth), nil
	case strings.HasSuffix(name, ".gerh"):
		return gzip.NewWriterLevel(a, level)
	case strings.HasSuffix(name, ".erh") && !strings.HasSuffix(name, ".zerh"):
		return flate.NewWriter(a, level)
	default: //.zerh and anything unrecognized
		return zstd.NewWriter(a, zstd.WithEncoderLevel(zstd.SpeedBestCompression))
	}
}

func anyNewReader(name string, a io.Reader) (io.ReadCloser, error) {
	switch {
	case strings.HasSuffix(name, ".lerh"):
		return lzw.NewReader(a, lzw.MSB, lzwLitwidth), nil
	case strings.HasSuffix(name, ".gerh"):
		return gzip.NewReader(a)
	case strings.HasSuffix(name, ".erh") && !strings.HasSuffix(name, ".zerh"):
		return flate.NewReader(a), nil
	default:
		r, err := zstd.NewReader(a)
		if err != nil {
			return nil, err
		}
		return zstdql{r.Close, r}, nil
	}
}

//Errors

//Error is the general structure for rotation-history errors. It fulfills
//ensrest.Error and ensrest.HistoryError.
type Error struct {
	message  string
	filename string //the file that has problems, or empty string if none.
	deco     []string
	critical bool
}

func (err Error) Error() string {
	return fmt.Sprintf("history file %s error: %s", err.filename, err.message)
}

//Decorate adds new information to the error
func (err Error) Decorate(deco string) []string {
	//Even though this method does not use a pointer as a receiver, and tries to alter the receiver,
	//it should work, since err.deco is a slice, and hence a pointer itself.
	if deco != "" {
		err.deco = append(err.deco, deco)
	}
	return err.deco
}

//FileName returns the file to which the failing history was associated
func (err Error) FileName() string { return err.filename }

//Format returns the format of the file associated to the error
func (err Error) Format() string { return "erh" }

//Critical returns true if the error is critical, false otherwise
func (err Error) Critical() bool { return err.critical }

const (
	HistUnIniRead  = "History object uninitialized to read"
	HistUnIniWrite = "History object uninitialized to write"
	BadBins        = "A history needs at least 1 bin per frame"
	BadGeometry    = "Bin width and sigma must be positive"
	BadMetadata    = "Metadata keys and values can't contain '=', newlines or a leading '*'"
	NotEnoughSpace = "Destination slice doesn't match the file's bins"
)

//lastRecordError implements ensrest.LastRecordError
type lastRecordError struct {
	deco     []string
	fileName string
}

//NormalLastRecordTermination does nothing
func (err lastRecordError) NormalLastRecordTermination() {}

func (err lastRecordError) FileName() string { return err.fileName }

func (err lastRecordError) Error() string { return "EOF" }

func (err lastRecordError) Critical() bool { return false }

func (err lastRecordError) Format() string { return "erh" }

func (err lastRecordError) Decorate(deco string) []string {
	if deco != "" {
		err.deco = append(err.deco, deco)
	}
	return err.deco
}

func newLastRecordError(filename string, caller string) *lastRecordError {
	e := new(lastRecordError)
	e.fileName = filename
	e.deco = []string{caller}
	return e
}
