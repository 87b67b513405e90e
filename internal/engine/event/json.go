// Copyright (C) 2020 The watchexec-go Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package event

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// wireTag is the kebab-case-discriminated JSON shape for a Tag, used by
// the parse-and-print side tool described in spec §6. Unknown variants
// deserialize as UnknownTag and serialize back unchanged, for forward
// compatibility.
type wireTag struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data,omitempty"`
}

// UnknownTag preserves a Tag variant this build does not recognize, so
// round-tripping through an older/newer build does not lose data.
type UnknownTag struct {
	RawKind string
	Data    json.RawMessage
}

func (UnknownTag) Kind() TagKind { return -1 }

func kindToWire(k TagKind) string {
	switch k {
	case TagPath:
		return "path"
	case TagFileEventKind:
		return "file-event-kind"
	case TagSource:
		return "source"
	case TagKeyboard:
		return "keyboard"
	case TagProcess:
		return "process"
	case TagSignal:
		return "signal"
	case TagProcessCompletion:
		return "process-completion"
	}
	return "unknown"
}

// MarshalJSON implements the kebab-case tag round-trip from spec §6.
func (e Event) MarshalJSON() ([]byte, error) {
	wire := struct {
		Tags     []wireTag           `json:"tags"`
		Metadata map[string][]string `json:"metadata,omitempty"`
	}{}

	for _, t := range e.Tags {
		if unk, ok := t.(UnknownTag); ok {
			wire.Tags = append(wire.Tags, wireTag{Kind: unk.RawKind, Data: unk.Data})
			continue
		}
		data, err := json.Marshal(t)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to marshal tag kind [%d]", t.Kind())
		}
		wire.Tags = append(wire.Tags, wireTag{Kind: kindToWire(t.Kind()), Data: data})
	}
	wire.Metadata = e.Metadata

	return json.Marshal(wire)
}

// UnmarshalJSON implements the inverse of MarshalJSON, preserving unknown
// tag kinds as UnknownTag per spec §6.
func (e *Event) UnmarshalJSON(b []byte) error {
	var wire struct {
		Tags     []wireTag           `json:"tags"`
		Metadata map[string][]string `json:"metadata,omitempty"`
	}
	if err := json.Unmarshal(b, &wire); err != nil {
		return errors.Wrap(err, "failed to unmarshal event envelope")
	}

	e.Metadata = wire.Metadata
	e.Tags = nil

	for _, wt := range wire.Tags {
		tag, err := wireToTag(wt)
		if err != nil {
			return err
		}
		e.Tags = append(e.Tags, tag)
	}

	return nil
}

func wireToTag(wt wireTag) (Tag, error) {
	unmarshal := func(v Tag) (Tag, error) {
		if len(wt.Data) == 0 {
			return v, nil
		}
		if err := json.Unmarshal(wt.Data, v); err != nil {
			return nil, errors.Wrapf(err, "failed to unmarshal tag kind [%s]", wt.Kind)
		}
		return derefTag(v), nil
	}

	switch wt.Kind {
	case "path":
		return unmarshal(&PathTag{})
	case "file-event-kind":
		return unmarshal(&FileEventKindTag{})
	case "source":
		return unmarshal(&SourceTag{})
	case "keyboard":
		return unmarshal(&KeyboardTag{})
	case "process":
		return unmarshal(&ProcessTag{})
	case "signal":
		return unmarshal(&SignalTag{})
	case "process-completion":
		return unmarshal(&ProcessCompletionTag{})
	default:
		return UnknownTag{RawKind: wt.Kind, Data: wt.Data}, nil
	}
}

// derefTag converts a pointer-to-tag-struct back into the value type the
// Tag interface is implemented on, since json.Unmarshal requires a pointer
// target but Tag's methods have value receivers.
func derefTag(v Tag) Tag {
	switch p := v.(type) {
	case *PathTag:
		return *p
	case *FileEventKindTag:
		return *p
	case *SourceTag:
		return *p
	case *KeyboardTag:
		return *p
	case *ProcessTag:
		return *p
	case *SignalTag:
		return *p
	case *ProcessCompletionTag:
		return *p
	}
	return v
}
