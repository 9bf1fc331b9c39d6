package core

// RelationshipKind is the type of relationship between two models.
type RelationshipKind int

const (
	// OneToOne links one row to at most one related row.
	OneToOne RelationshipKind = iota
	// ManyToOne links many rows to one related row (FK on the local side).
	ManyToOne
	// OneToMany links one row to many related rows (FK on the remote side).
	OneToMany
	// ManyToMany links through an intermediate link table.
	ManyToMany
)

// LinkTableInfo describes the link table of a many-to-many relationship.
type LinkTableInfo struct {
	TableName    string
	LocalColumn  string
	RemoteColumn string
}

// RelationshipInfo is the static metadata of one relationship. Like
// FieldInfo, these are built once and never mutated.
type RelationshipInfo struct {
	// Name of the relationship accessor.
	Name string
	// RelatedTable is the related model's table name.
	RelatedTable string
	Kind         RelationshipKind
	// LocalKey is the FK column on the local model (ManyToOne).
	LocalKey string
	// RemoteKey is the FK column on the related model (OneToMany).
	RemoteKey string
	// LinkTable is set for ManyToMany.
	LinkTable *LinkTableInfo
	// BackPopulates names the reciprocal relationship on the related model.
	BackPopulates string
	// Lazy marks the relationship for on-demand loading.
	Lazy bool
	// CascadeDelete deletes related rows together with the owner.
	CascadeDelete bool
}

// NewRelationship builds a relationship with the required attributes.
func NewRelationship(name, relatedTable string, kind RelationshipKind) RelationshipInfo {
	return RelationshipInfo{Name: name, RelatedTable: relatedTable, Kind: kind}
}

// WithLocalKey sets the local FK column.
func (r RelationshipInfo) WithLocalKey(key string) RelationshipInfo { r.LocalKey = key; return r }

// WithRemoteKey sets the remote FK column.
func (r RelationshipInfo) WithRemoteKey(key string) RelationshipInfo { r.RemoteKey = key; return r }

// WithLinkTable sets the link table for ManyToMany.
func (r RelationshipInfo) WithLinkTable(t LinkTableInfo) RelationshipInfo { r.LinkTable = &t; return r }

// WithBackPopulates names the reciprocal relationship.
func (r RelationshipInfo) WithBackPopulates(field string) RelationshipInfo {
	r.BackPopulates = field
	return r
}

// WithLazy toggles lazy loading.
func (r RelationshipInfo) WithLazy(v bool) RelationshipInfo { r.Lazy = v; return r }

// WithCascadeDelete toggles cascade delete.
func (r RelationshipInfo) WithCascadeDelete(v bool) RelationshipInfo { r.CascadeDelete = v; return r }

// FindRelationship looks a relationship up by name.
func FindRelationship(rels []RelationshipInfo, name string) (RelationshipInfo, bool) {
	for _, r := range rels {
		if r.Name == name {
			return r, true
		}
	}
	return RelationshipInfo{}, false
}

// ValidateBackPopulates checks that two reciprocal relationships name each
// other consistently.
func ValidateBackPopulates(local, remote RelationshipInfo) error {
	if local.BackPopulates == "" || remote.BackPopulates == "" {
		return nil
	}
	if local.BackPopulates != remote.Name || remote.BackPopulates != local.Name {
		return Errorf(KindValidation,
			"back_populates mismatch: %q points at %q but %q points at %q",
			local.Name, local.BackPopulates, remote.Name, remote.BackPopulates)
	}
	return nil
}

// Related is the loaded state of a to-one relationship: either unloaded or a
// loaded (possibly absent) related primary key.
type Related struct {
	loaded bool
	key    Value
}

// LoadedRelated marks a relationship loaded with the given related key.
func LoadedRelated(key Value) Related {
	return Related{loaded: true, key: key}
}

// Loaded reports whether the relationship has been loaded.
func (r Related) Loaded() bool { return r.loaded }

// Key returns the related primary key; only meaningful when Loaded.
func (r Related) Key() Value { return r.key }

// RelatedMany is the loaded state of a to-many relationship.
type RelatedMany struct {
	loaded bool
	keys   []Value
}

// LoadedRelatedMany marks the relationship loaded with the given child keys.
func LoadedRelatedMany(keys []Value) RelatedMany {
	return RelatedMany{loaded: true, keys: keys}
}

// Loaded reports whether the relationship has been loaded.
func (r RelatedMany) Loaded() bool { return r.loaded }

// Keys returns the loaded child keys.
func (r RelatedMany) Keys() []Value { return r.keys }
