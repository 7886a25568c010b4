// Package xmp tags output images with a "processed with" XMP packet, either
// embedded in a PNG iTXt chunk or written as a .xmp sidecar.
package xmp

import (
	"bytes"
	"fmt"
	"slices"
	"time"

	"trimmer.io/go-xmp/models/dc"
	goxmp "trimmer.io/go-xmp/xmp"
)

const DefaultTool = "removebg-square"

const langDefault = "x-default"

// Meta is the part of an XMP packet this package reads and writes.
type Meta struct {
	Keywords    []string
	Description string
}

// Tag adds the ProcessedWith keyword and sets the x-default description.
// It reports whether anything changed.
func (m *Meta) Tag(tool string, date time.Time) bool {
	changed := false
	kw := "ProcessedWith:" + tool
	if !slices.Contains(m.Keywords, kw) {
		m.Keywords = append(m.Keywords, kw)
		changed = true
	}
	desc := fmt.Sprintf("Processed by %s on %s", tool, date.Format(time.DateOnly))
	if m.Description != desc {
		m.Description = desc
		changed = true
	}
	return changed
}

// Marshal renders m as a complete XMP packet.
func (m *Meta) Marshal() ([]byte, error) {
	d := goxmp.NewDocument()
	model, err := dc.MakeModel(d)
	if err != nil {
		return nil, fmt.Errorf("xmp dc model: %w", err)
	}
	m.apply(model)
	return marshal(d)
}

// Parse reads keywords and the x-default description from an XMP packet.
// A nil or empty packet gives an empty Meta.
func Parse(packet []byte) (*Meta, error) {
	d, err := load(packet)
	if err != nil {
		return nil, err
	}
	return metaOf(dc.FindModel(d)), nil
}

// retag 在已有 packet 上打标，其他命名空间原样保留；
// 已有 packet 无法解析时重新生成
func retag(packet []byte, tool string, date time.Time) ([]byte, bool, error) {
	d, err := load(packet)
	if err != nil {
		d = goxmp.NewDocument()
	}
	model, err := dc.MakeModel(d)
	if err != nil {
		return nil, false, fmt.Errorf("xmp dc model: %w", err)
	}

	m := metaOf(model)
	if !m.Tag(tool, date) && len(packet) > 0 {
		return packet, false, nil
	}
	m.apply(model)

	out, err := marshal(d)
	if err != nil {
		return nil, false, err
	}
	return out, true, nil
}

func load(packet []byte) (*goxmp.Document, error) {
	d := goxmp.NewDocument()
	if len(bytes.TrimSpace(packet)) == 0 {
		return d, nil
	}
	if err := goxmp.Unmarshal(packet, d); err != nil {
		return nil, fmt.Errorf("parse xmp: %w", err)
	}
	return d, nil
}

func marshal(d *goxmp.Document) ([]byte, error) {
	out, err := goxmp.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("marshal xmp: %w", err)
	}
	return out, nil
}

func metaOf(model *dc.DublinCore) *Meta {
	m := &Meta{}
	if model == nil {
		return m
	}
	for _, kw := range model.Subject {
		if kw != "" {
			m.Keywords = append(m.Keywords, kw)
		}
	}
	m.Description = defaultText(model.Description)
	return m
}

func (m *Meta) apply(model *dc.DublinCore) {
	model.Subject = model.Subject[:0]
	for _, kw := range m.Keywords {
		model.Subject = append(model.Subject, kw)
	}

	var rest goxmp.AltString
	for _, item := range model.Description {
		if !isDefault(item) {
			rest = append(rest, item)
		}
	}
	if m.Description != "" {
		rest = append(goxmp.AltString{{Value: m.Description, Lang: langDefault, IsDefault: true}}, rest...)
	}
	model.Description = rest
}

func isDefault(item goxmp.AltItem) bool {
	return item.IsDefault || item.Lang == langDefault
}

// defaultText 取 x-default 的值，没有时取第一项
func defaultText(alt goxmp.AltString) string {
	for _, item := range alt {
		if isDefault(item) {
			return item.Value
		}
	}
	if len(alt) > 0 {
		return alt[0].Value
	}
	return ""
}
