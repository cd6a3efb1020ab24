package command

import (
	"encoding/json"
	"fmt"
)

// envelope is the shape every command (and every change) actually takes
// on the wire: a "type" discriminator plus the variant's own fields
// flattened alongside it (spec.md §6).
type envelope struct {
	Type string `json:"type"`
}

// commandFactory constructs a zero-value Command for a given wire type,
// ready to be populated by json.Unmarshal.
type commandFactory func() Command

// commandRegistry is the closed dispatch table the codec decodes against;
// every entry here is also matched in the executor's dispatch switch (C4)
// so the invariant from spec.md §4.1 ("adding a new command requires
// exactly one place in the dispatch table to change") holds for decode
// too.
var commandRegistry = map[string]commandFactory{
	"CREATE_PROJECT":            func() Command { return &CreateProject{} },
	"REMOVE_PROJECT":            func() Command { return &RemoveProject{} },
	"UNREMOVE_PROJECT":          func() Command { return &UnremoveProject{} },
	"PURGE_PROJECT":             func() Command { return &PurgeProject{} },
	"RESET_META_REPOSITORY":     func() Command { return &ResetMetaRepository{} },
	"CREATE_REPOSITORY":         func() Command { return &CreateRepository{} },
	"REMOVE_REPOSITORY":         func() Command { return &RemoveRepository{} },
	"UNREMOVE_REPOSITORY":       func() Command { return &UnremoveRepository{} },
	"PURGE_REPOSITORY":          func() Command { return &PurgeRepository{} },
	"CREATE_ROLLING_REPOSITORY": func() Command { return &CreateRollingRepository{} },
	"ROTATE_WDEK":               func() Command { return &RotateWdek{} },
	"UPDATE_REPOSITORY_STATUS":  func() Command { return &UpdateRepositoryStatus{} },
	"PUSH":                      func() Command { return &NormalizingPush{} },
	"PUSH_AS_IS":                func() Command { return &PushAsIs{} },
	"TRANSFORM":                 func() Command { return &Transform{} },
	"CREATE_SESSION":            func() Command { return &CreateSession{} },
	"REMOVE_SESSION":            func() Command { return &RemoveSession{} },
	"CREATE_SESSION_MASTER_KEY": func() Command { return &CreateSessionMasterKey{} },
	"CREATE_TOKEN":              func() Command { return &CreateToken{} },
	"DEACTIVATE_TOKEN":          func() Command { return &DeactivateToken{} },
	"DELETE_TOKEN":              func() Command { return &DeleteToken{} },
	"UPDATE_SERVER_STATUS":      func() Command { return &UpdateServerStatus{} },
	"FORCE_PUSH":                func() Command { return &ForcePush{} },
}

type changeFactory func() Change

var changeRegistry = map[string]changeFactory{
	"UPSERT_JSON":      func() Change { return &UpsertJSON{} },
	"UPSERT_YAML":      func() Change { return &UpsertYAML{} },
	"UPSERT_TEXT":      func() Change { return &UpsertText{} },
	"REMOVE":           func() Change { return &Remove{} },
	"RENAME":           func() Change { return &Rename{} },
	"APPLY_JSON_PATCH":  func() Change { return &ApplyJSONPatch{} },
	"APPLY_TEXT_PATCH":  func() Change { return &ApplyTextPatch{} },
}

// Encode marshals c to canonical JSON with its "type" discriminator set.
func Encode(c Command) ([]byte, error) {
	return encodeTagged(c.CommandType(), c)
}

// Decode unmarshals canonical JSON into the concrete Command named by its
// "type" field. An unrecognized type is a hard parse error (spec.md §4.1);
// unknown fields on a known type are silently ignored (encoding/json's
// default behavior already satisfies the forward-compat rule).
func Decode(data []byte) (Command, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decoding command envelope: %w", err)
	}

	factory, ok := commandRegistry[env.Type]
	if !ok {
		return nil, NewDecodeError(env.Type, "unrecognized command type")
	}

	cmd := factory()

	// ForcePush.Inner is a Command interface: encoding/json cannot
	// construct its concrete type on its own, so it is decoded separately
	// through decodeForcePushInner instead of the generic unmarshal below.
	if fp, ok := cmd.(*ForcePush); ok {
		if err := decodeForcePushInner(data, fp); err != nil {
			return nil, err
		}

		return fp, nil
	}

	if err := json.Unmarshal(data, cmd); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", env.Type, err)
	}

	return cmd, nil
}

// forcePushWire mirrors ForcePush's JSON shape but keeps Inner as a raw
// message so it can be encoded/decoded recursively through Encode/Decode.
type forcePushWire struct {
	Header
	Inner json.RawMessage `json:"inner"`
}

// MarshalJSON encodes Inner through Encode so it carries its own "type"
// discriminator, matching what decodeForcePushInner expects on read-back.
func (c ForcePush) MarshalJSON() ([]byte, error) {
	inner, err := Encode(c.Inner)
	if err != nil {
		return nil, fmt.Errorf("marshaling force_push.inner: %w", err)
	}

	return json.Marshal(forcePushWire{Header: c.Header, Inner: inner})
}

func decodeForcePushInner(data []byte, fp *ForcePush) error {
	var wire forcePushWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return fmt.Errorf("decoding force_push envelope: %w", err)
	}

	inner, err := Decode(wire.Inner)
	if err != nil {
		return fmt.Errorf("decoding force_push.inner: %w", err)
	}

	fp.Header = wire.Header
	fp.Inner = inner

	return nil
}

// EncodeChange marshals a Change to canonical JSON with its "type" set.
func EncodeChange(c Change) ([]byte, error) {
	return encodeTagged(c.ChangeType(), c)
}

// DecodeChange unmarshals canonical JSON into the concrete Change named
// by its "type" field.
func DecodeChange(data []byte) (Change, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decoding change envelope: %w", err)
	}

	factory, ok := changeRegistry[env.Type]
	if !ok {
		return nil, NewDecodeError(env.Type, "unrecognized change type")
	}

	ch := factory()
	if err := json.Unmarshal(data, ch); err != nil {
		return nil, fmt.Errorf("decoding change %s: %w", env.Type, err)
	}

	return ch, nil
}

// encodeTagged marshals v (a struct with its own json tags) and splices
// in a top-level "type": typ field, matching the wire example in §6
// where the discriminator sits alongside the variant's own fields rather
// than nested under a wrapper key.
func encodeTagged(typ string, v any) ([]byte, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshaling %s: %w", typ, err)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("flattening %s: %w", typ, err)
	}

	fields["type"], err = json.Marshal(typ)
	if err != nil {
		return nil, err
	}

	return json.Marshal(fields)
}
