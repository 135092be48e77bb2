package model

// All lists every persistence model in dependency order for schema migration.
func All() []any {
	return []any{&UserModel{}, &PostModel{}, &ConsumedStateModel{}}
}
