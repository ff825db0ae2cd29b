package log

import (
	"errors"
	"fmt"
	"reflect"
	"runtime"
	"strings"
)

type hasPC interface {
	PC() uintptr
}

type hasStack interface {
	StackPCs() []uintptr
}

// errorAttrs describes err for an error record: the error itself, its
// outermost meaningful type, its root cause type and the message chain.
func errorAttrs(err error, links bool, maxLinks int) []any {
	surface, root := classifyTypes(err)
	kv := []any{
		"err", err,
		"error_type", surface,
		"cause_type", root,
	}
	if chain := errorChain(err); len(chain) > 1 {
		kv = append(kv, "error_chain", chain)
	}
	if links {
		kv = append(kv, "error_links", chainLinks(err, maxLinks))
	}
	return kv
}

// errorChain lists each distinct message from err down to its root, followed
// by the members of a top-level errors.Join.
func errorChain(err error) []string {
	var out []string
	add := func(msg string) {
		if len(out) == 0 || out[len(out)-1] != msg {
			out = append(out, msg)
		}
	}
	for e := err; e != nil; e = errors.Unwrap(e) {
		add(e.Error())
	}
	if j, ok := err.(interface{ Unwrap() []error }); ok {
		for _, e := range j.Unwrap() {
			if e != nil {
				add(e.Error())
			}
		}
	}
	return out
}

// chainLinks records where each wrap in the chain happened. The first link is
// always present; later ones only when a position is known.
func chainLinks(err error, max int) []map[string]any {
	var links []map[string]any
	for depth, e := 0, err; e != nil && (max <= 0 || depth < max); depth, e = depth+1, errors.Unwrap(e) {
		link := map[string]any{"msg": e.Error()}
		fr, ok := errorFrame(e)
		if ok {
			link["func"], link["file"], link["line"] = fr.Function, fr.File, fr.Line
		}
		if depth == 0 || ok {
			links = append(links, link)
		}
	}
	return links
}

func errorFrame(e error) (runtime.Frame, bool) {
	switch v := e.(type) {
	case hasPC:
		if pc := v.PC(); pc != 0 {
			fr, _ := runtime.CallersFrames([]uintptr{pc}).Next()
			return fr, true
		}
	case hasStack:
		for _, fr := range frames(v.StackPCs()) {
			if !internalFrame(fr.Function, true) {
				return fr, true
			}
		}
	}
	return runtime.Frame{}, false
}

func callerStack(skip int) []uintptr {
	pcs := make([]uintptr, 64)
	return pcs[:runtime.Callers(skip, pcs)]
}

func frames(pcs []uintptr) []runtime.Frame {
	if len(pcs) == 0 {
		return nil
	}
	var out []runtime.Frame
	it := runtime.CallersFrames(pcs)
	for {
		fr, more := it.Next()
		out = append(out, fr)
		if !more {
			return out
		}
	}
}

// logPlumbing are the log package functions that sit between a call site and
// the slog handler.
var logPlumbing = []string{"(*slogLogger).", "traceHandler.", "stackHandler.", "redactHandler.", "callerStack"}

// internalFrame reports frames that belong to logging plumbing rather than
// the code that logged.
func internalFrame(fn string, includeXerrors bool) bool {
	switch {
	case strings.HasPrefix(fn, "runtime."), strings.HasPrefix(fn, "log/slog."):
		return true
	case includeXerrors && strings.Contains(fn, "/internal/xerrors."):
		return true
	}
	if _, rest, ok := strings.Cut(fn, "/internal/log."); ok {
		for _, p := range logPlumbing {
			if strings.HasPrefix(rest, p) {
				return true
			}
		}
	}
	return false
}

// formatFrames renders pcs as "func\n\tfile:line" lines, skipping leading
// logging frames and stopping at the runtime.
func formatFrames(pcs []uintptr) string {
	var b strings.Builder
	started := false
	for _, fr := range frames(pcs) {
		if strings.HasPrefix(fr.Function, "runtime.") {
			break
		}
		if !started && internalFrame(fr.Function, false) {
			continue
		}
		started = true
		fmt.Fprintf(&b, "%s\n\t%s:%d\n", fr.Function, fr.File, fr.Line)
	}
	return strings.TrimSpace(b.String())
}

// classifyTypes returns the first type in the chain that is not a plain
// wrapper, and the type of the root cause.
func classifyTypes(err error) (surface, root string) {
	if err == nil {
		return "", ""
	}
	var last error
	for e := err; e != nil; e = errors.Unwrap(e) {
		last = e
		if surface == "" && !isWrapper(e) {
			surface = fmt.Sprintf("%T", e)
		}
	}
	if surface == "" {
		surface = fmt.Sprintf("%T", err)
	}
	return surface, fmt.Sprintf("%T", last)
}

func isWrapper(e error) bool {
	if _, ok := e.(interface{ IsXerrorsWrapper() }); ok {
		return true
	}
	t := reflect.TypeOf(e)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.PkgPath() == "fmt" && t.Name() == "wrapError"
}
