package config

// DbSettings holds configuration for the primary store carrying the
// outbox table.
type DbSettings struct {
	Type       string `mapstructure:"type" validate:"required,oneof=postgres spanner mongo"`
	DSN        string `mapstructure:"dsn"`
	URI        string `mapstructure:"uri"`
	Database   string `mapstructure:"database"`
	Collection string `mapstructure:"collection"`
}

// ProjectionSettings holds configuration for the denormalized document
// store the projections are written to.
type ProjectionSettings struct {
	URI                string `mapstructure:"uri" validate:"required"`
	Database           string `mapstructure:"database" validate:"required"`
	SearchCollection   string `mapstructure:"search_collection"`
	CommentCollection  string `mapstructure:"comment_collection"`
	ReactionCollection string `mapstructure:"reaction_collection"`
}
