// Package capture implements access to dissected capture records.
//
// A record is one element of the dissector JSON array,
// [{"_source":{"layers":{...}}}]. Raw layer fields are either plain hex strings
// or arrays whose first element is the hex string, depending on the dissector
// version. The representation is detected once per batch and applied to every
// record of it.
package capture

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/Jeffail/gabs/v2"
	"github.com/spf13/cast"

	"firestige.xyz/hfinger/internal/core"
)

// Layer field names used by the request extractor.
const (
	LayerSegments = "tcp.segments_raw"
	LayerFrame    = "frame_raw"
	LayerEth      = "eth_raw"
	LayerIP       = "ip_raw"
	LayerTCP      = "tcp_raw"
	LayerHTTP     = "http_raw"
)

// Convention is the representation of raw layer fields in a batch.
type Convention int

const (
	// ConventionString stores raw layers as plain hex strings.
	ConventionString Convention = iota
	// ConventionList stores raw layers as [hex, offset, length, ...] arrays.
	ConventionList
)

// String returns the convention name.
func (c Convention) String() string {
	if c == ConventionList {
		return "list"
	}
	return "string"
}

// Record is one dissected packet.
type Record struct {
	layers *gabs.Container
}

// NewRecord wraps the layers object of a record.
func NewRecord(layers *gabs.Container) Record {
	return Record{layers: layers}
}

// Layers returns the underlying layers container.
func (r Record) Layers() *gabs.Container {
	return r.layers
}

// Has reports whether the record carries the named top-level layer.
func (r Record) Has(name string) bool {
	return r.layers != nil && r.layers.Exists(name)
}

// Raw returns the hex string of a raw layer under convention c.
func (r Record) Raw(name string, c Convention) (string, bool) {
	if !r.Has(name) {
		return "", false
	}
	v := r.layers.Search(name).Data()
	if c == ConventionList {
		list, ok := v.([]any)
		if !ok || len(list) == 0 {
			return "", false
		}
		v = list[0]
	}
	s, ok := v.(string)
	return s, ok
}

// field returns a nested metadata value such as layers.ip["ip.src"].
func (r Record) field(layer, key string) any {
	if r.layers == nil {
		return nil
	}
	c := r.layers.Search(layer, key)
	if c == nil {
		return nil
	}
	return c.Data()
}

// EpochTime returns frame.time_epoch as text.
func (r Record) EpochTime() string {
	return cast.ToString(r.field("frame", "frame.time_epoch"))
}

// IPSrc returns the source address, falling back to IPv6.
func (r Record) IPSrc() string {
	if v := r.field("ip", "ip.src"); v != nil {
		return cast.ToString(v)
	}
	return cast.ToString(r.field("ipv6", "ipv6.src"))
}

// IPDst returns the destination address, falling back to IPv6.
func (r Record) IPDst() string {
	if v := r.field("ip", "ip.dst"); v != nil {
		return cast.ToString(v)
	}
	return cast.ToString(r.field("ipv6", "ipv6.dst"))
}

// PortSrc returns tcp.srcport exactly as supplied: a string from tshark, a number
// from the native dissector.
func (r Record) PortSrc() any {
	return port(r.field("tcp", "tcp.srcport"))
}

// PortDst returns tcp.dstport exactly as supplied.
func (r Record) PortDst() any {
	return port(r.field("tcp", "tcp.dstport"))
}

func port(v any) any {
	if n, ok := v.(json.Number); ok {
		if i, err := cast.ToIntE(n.String()); err == nil {
			return i
		}
		return n
	}
	return v
}

// Batch is a decoded dissector output.
type Batch struct {
	Records    []Record
	Convention Convention
}

// Decode parses dissector JSON. Invalid UTF-8 inside strings is tolerated since
// only the hex layers are analysed. An empty array yields an empty batch.
func Decode(data []byte) (*Batch, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	root, err := gabs.ParseJSONDecoder(dec)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrMalformedCapture, err)
	}
	if _, ok := root.Data().([]any); !ok {
		return nil, fmt.Errorf("%w: top level is not an array", core.ErrMalformedCapture)
	}

	children := root.Children()
	b := &Batch{Records: make([]Record, 0, len(children))}
	for i, child := range children {
		layers := child.Search("_source", "layers")
		if layers == nil {
			return nil, fmt.Errorf("%w: record %d has no _source.layers", core.ErrMalformedCapture, i)
		}
		if _, ok := layers.Data().(map[string]any); !ok {
			return nil, fmt.Errorf("%w: record %d layers is not an object", core.ErrMalformedCapture, i)
		}
		b.Records = append(b.Records, NewRecord(layers))
	}
	b.Convention = DetectConvention(b.Records)
	return b, nil
}

// DetectConvention inspects the frame_raw field of the first record that has one.
func DetectConvention(records []Record) Convention {
	for _, r := range records {
		if !r.Has(LayerFrame) {
			continue
		}
		if _, ok := r.layers.Search(LayerFrame).Data().([]any); ok {
			return ConventionList
		}
		return ConventionString
	}
	return ConventionString
}
