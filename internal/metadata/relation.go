package metadata

type RelationKind string

const (
	BelongsTo  RelationKind = "belongsTo"
	HasMany    RelationKind = "hasMany"
	ManyToMany RelationKind = "manyToMany"
)

type Relation struct {
	Name       string       `json:"name"`
	Kind       RelationKind `json:"kind"`
	Target     string       `json:"target"`
	ForeignKey string       `json:"foreign_key,omitempty"` // belongsTo: column on this model; hasMany: column on target
	Pivot      string       `json:"pivot,omitempty"`       // manyToMany association table
}

func (r *Relation) IsBelongsTo() bool {
	return r.Kind == BelongsTo
}

func (r *Relation) IsHasMany() bool {
	return r.Kind == HasMany
}

func (r *Relation) IsManyToMany() bool {
	return r.Kind == ManyToMany
}

// Countable reports whether the relation supports the "-count" aggregate.
func (r *Relation) Countable() bool {
	return r.Kind == HasMany || r.Kind == ManyToMany
}
