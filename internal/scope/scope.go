// Package scope defines the containment hierarchy thresholds are configured against.
//
// Every monitored object lives at exactly one node of a four-level tree:
//
//	Root → Instance → Database → File (filegroup or file)
//
// A Key addresses one node. Keys can only be built through the constructors in
// this package, so an out-of-order shape (a database without an instance, for
// example) cannot be expressed in code; it can only arrive from persisted
// columns or request input, where FromColumns and Parse reject it.
package scope

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidScope reports a key whose shape is not one of the four valid forms.
var ErrInvalidScope = errors.New("invalid scope")

// Unset is the persisted column value for an identifier that is not part of the key.
// An instance_id of Unset is the root (global default) scope.
const Unset int32 = -1

// Level is the depth of a scope in the hierarchy.
type Level int

// Scope levels, ordered from the hierarchy root downwards.
const (
	LevelRoot Level = iota
	LevelInstance
	LevelDatabase
	LevelFile
)

// String returns the level name used in logs and JSON.
func (l Level) String() string {
	switch l {
	case LevelRoot:
		return "root"
	case LevelInstance:
		return "instance"
	case LevelDatabase:
		return "database"
	case LevelFile:
		return "file"
	default:
		return "level(" + strconv.Itoa(int(l)) + ")"
	}
}

// ParseLevel converts a level name back to a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "root":
		return LevelRoot, nil
	case "instance":
		return LevelInstance, nil
	case "database":
		return LevelDatabase, nil
	case "file", "filegroup":
		return LevelFile, nil
	default:
		return 0, fmt.Errorf("%w: unknown level %q", ErrInvalidScope, s)
	}
}

// Key identifies a node in the containment hierarchy.
//
// Key is comparable and safe to use as a map key. The zero value is Root.
type Key struct {
	level      Level
	instanceID int32
	databaseID int32
	fileID     int32
}

// Root returns the global default scope.
func Root() Key {
	return Key{}
}

// Instance returns the scope of a monitored instance.
func Instance(instanceID int32) Key {
	return Key{level: LevelInstance, instanceID: instanceID}
}

// Database returns the scope of a database on an instance.
func Database(instanceID, databaseID int32) Key {
	return Key{level: LevelDatabase, instanceID: instanceID, databaseID: databaseID}
}

// File returns the scope of a filegroup or file within a database.
func File(instanceID, databaseID, fileID int32) Key {
	return Key{level: LevelFile, instanceID: instanceID, databaseID: databaseID, fileID: fileID}
}

// Level returns the depth of the key.
func (k Key) Level() Level { return k.level }

// IsRoot reports whether the key is the global default scope.
func (k Key) IsRoot() bool { return k.level == LevelRoot }

// InstanceID returns the instance identifier, or 0 at Root.
func (k Key) InstanceID() int32 { return k.instanceID }

// DatabaseID returns the database identifier, or 0 above Database level.
func (k Key) DatabaseID() int32 { return k.databaseID }

// FileID returns the filegroup/file identifier, or 0 above File level.
func (k Key) FileID() int32 { return k.fileID }

// Validate checks that every identifier the shape requires is positive.
func (k Key) Validate() error {
	switch k.level {
	case LevelRoot:
		return nil
	case LevelFile:
		if k.fileID <= 0 {
			return fmt.Errorf("%w: file id must be positive, got %d", ErrInvalidScope, k.fileID)
		}
		fallthrough
	case LevelDatabase:
		if k.databaseID <= 0 {
			return fmt.Errorf("%w: database id must be positive, got %d", ErrInvalidScope, k.databaseID)
		}
		fallthrough
	case LevelInstance:
		if k.instanceID <= 0 {
			return fmt.Errorf("%w: instance id must be positive, got %d", ErrInvalidScope, k.instanceID)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown level %d", ErrInvalidScope, int(k.level))
	}
}

// Parent returns the immediate ancestor. The second result is false at Root.
func (k Key) Parent() (Key, bool) {
	switch k.level {
	case LevelFile:
		return Database(k.instanceID, k.databaseID), true
	case LevelDatabase:
		return Instance(k.instanceID), true
	case LevelInstance:
		return Root(), true
	default:
		return Key{}, false
	}
}

// Ancestors returns the key followed by each of its ancestors, ending at Root.
func (k Key) Ancestors() []Key {
	chain := make([]Key, 0, int(k.level)+1)
	for cur, ok := k, true; ok; cur, ok = cur.Parent() {
		chain = append(chain, cur)
	}
	return chain
}

// Contains reports whether other is k itself or a descendant of k.
func (k Key) Contains(other Key) bool {
	for cur, ok := other, true; ok; cur, ok = cur.Parent() {
		if cur == k {
			return true
		}
	}
	return false
}

// String renders the key as root, instance:3, database:3/7 or file:3/7/2.
func (k Key) String() string {
	switch k.level {
	case LevelRoot:
		return "root"
	case LevelInstance:
		return fmt.Sprintf("instance:%d", k.instanceID)
	case LevelDatabase:
		return fmt.Sprintf("database:%d/%d", k.instanceID, k.databaseID)
	case LevelFile:
		return fmt.Sprintf("file:%d/%d/%d", k.instanceID, k.databaseID, k.fileID)
	default:
		return "invalid"
	}
}

// Parse reads the String form of a key and validates it.
func Parse(s string) (Key, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "root") {
		return Root(), nil
	}

	name, rest, ok := strings.Cut(s, ":")
	if !ok {
		return Key{}, fmt.Errorf("%w: %q", ErrInvalidScope, s)
	}
	level, err := ParseLevel(name)
	if err != nil {
		return Key{}, err
	}

	parts := strings.Split(rest, "/")
	if len(parts) != int(level) {
		return Key{}, fmt.Errorf("%w: %s scope needs %d identifiers, got %q", ErrInvalidScope, level, int(level), rest)
	}
	ids := make([]int32, len(parts))
	for i, p := range parts {
		n, err := strconv.ParseInt(strings.TrimSpace(p), 10, 32)
		if err != nil {
			return Key{}, fmt.Errorf("%w: identifier %q: %v", ErrInvalidScope, p, err)
		}
		ids[i] = int32(n)
	}

	var k Key
	switch level {
	case LevelInstance:
		k = Instance(ids[0])
	case LevelDatabase:
		k = Database(ids[0], ids[1])
	case LevelFile:
		k = File(ids[0], ids[1], ids[2])
	}
	if err := k.Validate(); err != nil {
		return Key{}, err
	}
	return k, nil
}
