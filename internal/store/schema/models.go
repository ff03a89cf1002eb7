package schema

// Models lists every table managed by the service, in migration order
func Models() []any {
	return []any{
		&EntityEvent{},
		&Entity{},
		&ChangesJournal{},
		&KeyValueStore{},
	}
}
