// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package xmlstream extracts XML-style tagged elements from a chunked text
// stream. It is a forgiving tag scanner, not an XML parser: unquoted
// attributes, case-mixed closing tags, and unterminated elements are all
// recovered rather than rejected, because the producing model cannot be
// re-prompted mid-stream.
// Implements: prd006-xml-stream R1-R5.
package xmlstream

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/petar-djukic/streamedit/pkg/types"
)

// DefaultMaxPending bounds the trailing raw-text window kept for the
// end-of-stream recovery scan.
const DefaultMaxPending = 10000

// Element is one extracted tag. Content holds the element's direct text
// (text belonging to nested tags stays on the nested element); Children
// holds the nested elements in document order.
type Element struct {
	TagName    string
	Attributes map[string]string
	Content    string
	IsComplete bool
	Children   []*Element
}

// Callbacks receive elements and recoverable errors as the stream advances.
// OnElement fires with IsComplete=false snapshots while a matching element
// is still open, then once with IsComplete=true (or false at stream end for
// elements that never closed).
type Callbacks struct {
	OnElement func(el *Element)
	OnError   func(err *types.ParseError)
}

// Extractor is the reusable configuration; all per-stream data lives in
// State.
type Extractor struct {
	Log        *slog.Logger
	Targets    []string // Tag names to surface; empty means every tag
	MaxPending int      // Trailing window size; 0 means DefaultMaxPending
}

type frame struct {
	el      *Element
	content strings.Builder
	emitted int // Content length already surfaced via a partial snapshot
}

// State carries the parse position for one stream.
type State struct {
	stack       []*frame
	pending     string // Held-back tail that may begin an unfinished tag
	window      string // Bounded trailing raw text for recovery at Finish
	extracted   []*Element
	seen        map[string]bool // Lowercased tag names already delivered
	parseErrors int
}

// NewState returns a fresh per-stream state.
func NewState() *State {
	return &State{seen: make(map[string]bool)}
}

// HasParsingErrors reports whether recovery was needed anywhere in the
// stream.
func (s *State) HasParsingErrors() bool { return s.parseErrors > 0 }

// Elements returns every element delivered so far, in delivery order.
func (s *State) Elements() []*Element {
	out := make([]*Element, len(s.extracted))
	copy(out, s.extracted)
	return out
}

var tagRe = regexp.MustCompile(`<(/?)([A-Za-z_][A-Za-z0-9_.:-]*)((?:\s+[^<>]*?)?)(/?)>`)

// attrRe matches one attribute: name, then optionally = and a quoted or
// bare value.
var attrRe = regexp.MustCompile(`([A-Za-z_][A-Za-z0-9_.:-]*)(?:\s*=\s*(?:"([^"]*)"|'([^']*)'|([^\s"'>]+)))?`)

// ParseChunk consumes one chunk. Text that may start an unfinished tag is
// held back until the tag resolves, so chunk boundaries inside tags are
// invisible to callers.
func (x *Extractor) ParseChunk(st *State, chunk string, cb Callbacks) {
	data := st.pending + chunk
	cut := len(data)
	if i := strings.LastIndexByte(data, '<'); i >= 0 && !strings.ContainsRune(data[i:], '>') {
		cut = i
	}
	st.pending = data[cut:]
	x.scan(st, data[:cut], cb)
	x.extend(st, data[:cut])

	// A '<' that never resolves must not hold back text forever.
	if len(st.pending) > x.limit() {
		spill := st.pending
		st.pending = ""
		x.text(st, spill)
		x.extend(st, spill)
	}
	x.emitPartials(st, cb)
}

// Finish resolves everything still pending: the held-back tail becomes
// plain text, unclosed elements are delivered incomplete, and targets that
// were never seen get one last lenient scan over the trailing window.
func (x *Extractor) Finish(st *State, cb Callbacks) {
	if st.pending != "" {
		tail := st.pending
		st.pending = ""
		x.text(st, tail)
		x.extend(st, tail)
	}
	for len(st.stack) > 0 {
		f := st.stack[len(st.stack)-1]
		x.fail(st, cb, fmt.Sprintf("element <%s> never closed", f.el.TagName))
		x.pop(st, false, cb)
	}
	x.recoverMissing(st, cb)
}

func (x *Extractor) scan(st *State, text string, cb Callbacks) {
	pos := 0
	for _, m := range tagRe.FindAllStringSubmatchIndex(text, -1) {
		if m[0] > pos {
			x.text(st, text[pos:m[0]])
		}
		raw := text[m[0]:m[1]]
		closing := m[3] > m[2]
		name := text[m[4]:m[5]]
		attrBlob := ""
		if m[6] >= 0 {
			attrBlob = text[m[6]:m[7]]
		}
		selfClosing := m[9] > m[8]

		switch {
		case closing:
			x.closeTag(st, name, raw, cb)
		case selfClosing:
			el := &Element{TagName: name, Attributes: parseAttrs(attrBlob), IsComplete: true}
			x.attach(st, el)
			x.deliver(st, el, cb)
		default:
			st.stack = append(st.stack, &frame{
				el: &Element{TagName: name, Attributes: parseAttrs(attrBlob)},
			})
		}
		pos = m[1]
	}
	if pos < len(text) {
		x.text(st, text[pos:])
	}
}

// text adds plain text to the innermost open element; text outside any
// element is prose around the payload and is dropped.
func (x *Extractor) text(st *State, s string) {
	if len(st.stack) == 0 || s == "" {
		return
	}
	st.stack[len(st.stack)-1].content.WriteString(s)
}

// closeTag matches a closing tag against the stack, case-insensitively.
// Inner elements skipped over by an outer close are delivered incomplete.
func (x *Extractor) closeTag(st *State, name, raw string, cb Callbacks) {
	idx := -1
	for i := len(st.stack) - 1; i >= 0; i-- {
		if strings.EqualFold(st.stack[i].el.TagName, name) {
			idx = i
			break
		}
	}
	if idx < 0 {
		x.fail(st, cb, fmt.Sprintf("closing tag %s matches no open element", raw))
		return
	}
	for len(st.stack)-1 > idx {
		inner := st.stack[len(st.stack)-1]
		x.fail(st, cb, fmt.Sprintf("element <%s> closed implicitly by %s", inner.el.TagName, raw))
		x.pop(st, false, cb)
	}
	x.pop(st, true, cb)
}

// pop finalizes the innermost frame, attaches it to its parent, and
// delivers it if targeted.
func (x *Extractor) pop(st *State, complete bool, cb Callbacks) {
	f := st.stack[len(st.stack)-1]
	st.stack = st.stack[:len(st.stack)-1]

	f.el.Content = f.content.String()
	f.el.IsComplete = complete

	if len(st.stack) > 0 {
		parent := st.stack[len(st.stack)-1]
		parent.el.Children = append(parent.el.Children, f.el)
	}
	x.deliver(st, f.el, cb)
}

// attach records a self-closing element under its parent without pushing a
// frame.
func (x *Extractor) attach(st *State, el *Element) {
	if len(st.stack) == 0 {
		return
	}
	parent := st.stack[len(st.stack)-1]
	parent.el.Children = append(parent.el.Children, el)
}

func (x *Extractor) deliver(st *State, el *Element, cb Callbacks) {
	st.seen[strings.ToLower(el.TagName)] = true
	if !x.isTarget(el.TagName) {
		return
	}
	st.extracted = append(st.extracted, el)
	if cb.OnElement != nil {
		cb.OnElement(el)
	}
}

// emitPartials surfaces content growth of open targeted elements as
// IsComplete=false snapshots.
func (x *Extractor) emitPartials(st *State, cb Callbacks) {
	if cb.OnElement == nil {
		return
	}
	for _, f := range st.stack {
		if !x.isTarget(f.el.TagName) || f.content.Len() == f.emitted {
			continue
		}
		f.emitted = f.content.Len()
		snap := *f.el
		snap.Content = f.content.String()
		snap.IsComplete = false
		cb.OnElement(&snap)
	}
}

func (x *Extractor) isTarget(tag string) bool {
	if len(x.Targets) == 0 {
		return true
	}
	for _, t := range x.Targets {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

// recoverMissing runs a last lenient scan over the trailing window for
// targets that produced no element at all, catching open tags the strict
// scanner could not parse.
func (x *Extractor) recoverMissing(st *State, cb Callbacks) {
	for _, t := range x.Targets {
		if st.seen[strings.ToLower(t)] {
			continue
		}
		re, err := regexp.Compile(`(?is)<` + regexp.QuoteMeta(t) + `\b[^>]*>(.*?)(</` + regexp.QuoteMeta(t) + `>|$)`)
		if err != nil {
			continue
		}
		m := re.FindStringSubmatch(st.window)
		if m == nil {
			continue
		}
		x.fail(st, cb, fmt.Sprintf("element <%s> recovered by fallback scan", t))
		x.deliver(st, &Element{
			TagName:    t,
			Attributes: map[string]string{},
			Content:    m[1],
			IsComplete: m[2] != "",
		}, cb)
	}
}

func (x *Extractor) fail(st *State, cb Callbacks, msg string) {
	st.parseErrors++
	x.log().Warn("xml stream recovery", "message", msg)
	if cb.OnError != nil {
		cb.OnError(&types.ParseError{Message: msg})
	}
}

// extend appends processed raw text to the bounded trailing window.
func (x *Extractor) extend(st *State, s string) {
	limit := x.limit()
	st.window += s
	if len(st.window) > limit {
		st.window = st.window[len(st.window)-limit:]
	}
}

func (x *Extractor) limit() int {
	if x.MaxPending > 0 {
		return x.MaxPending
	}
	return DefaultMaxPending
}

func (x *Extractor) log() *slog.Logger {
	if x.Log != nil {
		return x.Log
	}
	return slog.Default()
}

func parseAttrs(blob string) map[string]string {
	attrs := make(map[string]string)
	for _, m := range attrRe.FindAllStringSubmatch(blob, -1) {
		switch {
		case m[2] != "":
			attrs[m[1]] = m[2]
		case m[3] != "":
			attrs[m[1]] = m[3]
		default:
			attrs[m[1]] = m[4]
		}
	}
	return attrs
}
