package store

import (
	"github.com/mailru/easyjson/jlexer"
	"github.com/mailru/easyjson/jwriter"
)

// Frame is one station's persisted score/prediction pair. Its
// Marshaler/Unmarshaler are hand-written against mailru/easyjson's
// jwriter/jlexer primitives (rather than codegen'd, since this module's
// toolchain never runs `easyjson -all`) so loading a cached score matrix
// avoids reflection-based encoding/json on what can be a
// many-thousand-sample float slice per station.
type Frame struct {
	StationID   string    `json:"station_id"`
	Scores      []float64 `json:"scores"`
	Predictions []int     `json:"predictions"`
}

// MarshalEasyJSON implements easyjson.Marshaler.
func (f *Frame) MarshalEasyJSON(w *jwriter.Writer) {
	w.RawByte('{')
	w.RawString(`"station_id":`)
	w.String(f.StationID)
	w.RawString(`,"scores":[`)
	for i, v := range f.Scores {
		if i > 0 {
			w.RawByte(',')
		}
		w.Float64(v)
	}
	w.RawString(`],"predictions":[`)
	for i, v := range f.Predictions {
		if i > 0 {
			w.RawByte(',')
		}
		w.Int(v)
	}
	w.RawString(`]}`)
}

// UnmarshalEasyJSON implements easyjson.Unmarshaler.
func (f *Frame) UnmarshalEasyJSON(l *jlexer.Lexer) {
	l.Delim('{')
	for !l.IsDelim('}') {
		key := l.UnsafeFieldName(false)
		l.WantColon()
		switch key {
		case "station_id":
			f.StationID = l.String()
		case "scores":
			l.Delim('[')
			f.Scores = f.Scores[:0]
			for !l.IsDelim(']') {
				f.Scores = append(f.Scores, l.Float64())
				l.WantComma()
			}
			l.Delim(']')
		case "predictions":
			l.Delim('[')
			f.Predictions = f.Predictions[:0]
			for !l.IsDelim(']') {
				f.Predictions = append(f.Predictions, l.Int())
				l.WantComma()
			}
			l.Delim(']')
		default:
			l.SkipRecursive()
		}
		l.WantComma()
	}
	l.Delim('}')
}

// MarshalJSON satisfies encoding/json.Marshaler so Frame can be embedded
// in structs that round-trip through the standard library elsewhere.
func (f *Frame) MarshalJSON() ([]byte, error) {
	w := &jwriter.Writer{}
	f.MarshalEasyJSON(w)
	return w.Buffer.BuildBytes(), nil
}

// UnmarshalJSON satisfies encoding/json.Unmarshaler.
func (f *Frame) UnmarshalJSON(data []byte) error {
	l := jlexer.Lexer{Data: data}
	f.UnmarshalEasyJSON(&l)
	return l.Error()
}

// FrameSet is a slice of Frames with easyjson array marshaling.
type FrameSet []Frame

func (fs FrameSet) MarshalEasyJSON(w *jwriter.Writer) {
	w.RawByte('[')
	for i := range fs {
		if i > 0 {
			w.RawByte(',')
		}
		fs[i].MarshalEasyJSON(w)
	}
	w.RawByte(']')
}

func (fs *FrameSet) UnmarshalEasyJSON(l *jlexer.Lexer) {
	l.Delim('[')
	*fs = (*fs)[:0]
	for !l.IsDelim(']') {
		var f Frame
		f.UnmarshalEasyJSON(l)
		*fs = append(*fs, f)
		l.WantComma()
	}
	l.Delim(']')
}

func (fs FrameSet) MarshalJSON() ([]byte, error) {
	w := &jwriter.Writer{}
	fs.MarshalEasyJSON(w)
	return w.Buffer.BuildBytes(), nil
}

func (fs *FrameSet) UnmarshalJSON(data []byte) error {
	l := jlexer.Lexer{Data: data}
	fs.UnmarshalEasyJSON(&l)
	return l.Error()
}
