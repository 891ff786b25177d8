package ledger

// DefaultCategories returns the starter set seeded for a user with an empty
// category list. Seeded records are SYNCED: they are device defaults with
// nothing to reconcile until the user edits them.
func DefaultCategories(userID string) []*Category {
	defaults := []struct {
		name  string
		icon  string
		color int64
		typ   FlowType
	}{
		{"Food", "🍽️", 0xFFFF6B6B, FlowExpense},
		{"Transport", "🚗", 0xFF4ECDC4, FlowExpense},
		{"Entertainment", "🎬", 0xFF45B7D1, FlowExpense},
		{"Health", "🏥", 0xFF96CEB4, FlowExpense},
		{"Education", "📚", 0xFFFFEAA7, FlowExpense},
		{"Salary", "💼", 0xFFDDA0DD, FlowIncome},
		{"Freelance", "💻", 0xFF98D8C8, FlowIncome},
		{"Investments", "📈", 0xFFF7DC6F, FlowIncome},
	}

	now := NowMillis()
	out := make([]*Category, 0, len(defaults))
	for _, d := range defaults {
		out = append(out, &Category{
			Envelope: Envelope{
				SyncStatus:   StatusSynced,
				LastModified: now,
				UserID:       userID,
			},
			Name:  d.name,
			Icon:  d.icon,
			Color: d.color,
			Type:  d.typ,
		})
	}
	return out
}
