package scope

import (
	"encoding/json"
	"fmt"
)

// FromColumns decodes the persisted three-column form, where Unset marks an
// identifier that is not part of the key. The set identifiers must form a
// prefix: a database id without an instance id is rejected, never coerced.
func FromColumns(instanceID, databaseID, fileID int32) (Key, error) {
	set := func(id int32) bool { return id != Unset }

	var k Key
	switch {
	case !set(instanceID) && !set(databaseID) && !set(fileID):
		k = Root()
	case set(instanceID) && !set(databaseID) && !set(fileID):
		k = Instance(instanceID)
	case set(instanceID) && set(databaseID) && !set(fileID):
		k = Database(instanceID, databaseID)
	case set(instanceID) && set(databaseID) && set(fileID):
		k = File(instanceID, databaseID, fileID)
	default:
		return Key{}, fmt.Errorf("%w: columns (%d, %d, %d) are not a prefix shape",
			ErrInvalidScope, instanceID, databaseID, fileID)
	}

	if err := k.Validate(); err != nil {
		return Key{}, err
	}
	return k, nil
}

// Columns encodes the key into its persisted three-column form.
func (k Key) Columns() (instanceID, databaseID, fileID int32) {
	instanceID, databaseID, fileID = Unset, Unset, Unset
	if k.level >= LevelInstance {
		instanceID = k.instanceID
	}
	if k.level >= LevelDatabase {
		databaseID = k.databaseID
	}
	if k.level >= LevelFile {
		fileID = k.fileID
	}
	return instanceID, databaseID, fileID
}

// jsonKey is the wire shape of a Key.
type jsonKey struct {
	Level      string `json:"level"`
	InstanceID *int32 `json:"instance_id,omitempty"`
	DatabaseID *int32 `json:"database_id,omitempty"`
	FileID     *int32 `json:"file_id,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (k Key) MarshalJSON() ([]byte, error) {
	out := jsonKey{Level: k.level.String()}
	if k.level >= LevelInstance {
		id := k.instanceID
		out.InstanceID = &id
	}
	if k.level >= LevelDatabase {
		id := k.databaseID
		out.DatabaseID = &id
	}
	if k.level >= LevelFile {
		id := k.fileID
		out.FileID = &id
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler. It accepts the object form, where
// a missing level is inferred from which identifiers are present, and the
// String form as a JSON string.
func (k *Key) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var text string
		if err := json.Unmarshal(data, &text); err != nil {
			return err
		}
		return k.UnmarshalText([]byte(text))
	}

	var in jsonKey
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	column := func(id *int32) int32 {
		if id == nil {
			return Unset
		}
		return *id
	}
	decoded, err := FromColumns(column(in.InstanceID), column(in.DatabaseID), column(in.FileID))
	if err != nil {
		return err
	}

	if in.Level != "" {
		level, err := ParseLevel(in.Level)
		if err != nil {
			return err
		}
		if level != decoded.level {
			return fmt.Errorf("%w: level %q does not match identifiers of %s", ErrInvalidScope, in.Level, decoded)
		}
	}

	*k = decoded
	return nil
}

// MarshalText implements encoding.TextMarshaler using the String form.
func (k Key) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler using Parse.
func (k *Key) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
