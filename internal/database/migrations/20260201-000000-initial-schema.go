package migrations

func init() {
	Register(Migration{
		Timestamp:   "20260201-000000",
		Description: "Initial schema",
		Up: []string{
			// Anonymous sessions - pre-auth principals
			`CREATE TABLE IF NOT EXISTS anonymous_sessions (
				id TEXT PRIMARY KEY,
				device_fp_hash TEXT,
				created_at TEXT NOT NULL,
				expires_at TEXT NOT NULL,
				migrated_to TEXT
			)`,
			`CREATE INDEX IF NOT EXISTS idx_anon_sessions_expires_at ON anonymous_sessions(expires_at)`,

			// Artifacts - immutable generated study guides, content-addressed
			`CREATE TABLE IF NOT EXISTS artifacts (
				id TEXT PRIMARY KEY,
				fingerprint TEXT NOT NULL,
				input_kind TEXT NOT NULL,
				raw_input TEXT,
				language TEXT NOT NULL,
				content_json TEXT NOT NULL,
				created_at TEXT NOT NULL,
				UNIQUE(fingerprint, language)
			)`,
			`CREATE INDEX IF NOT EXISTS idx_artifacts_fingerprint_lang ON artifacts(fingerprint, language)`,

			// Ownership join tables
			`CREATE TABLE IF NOT EXISTS ownership_user (
				user_id TEXT NOT NULL,
				artifact_id TEXT NOT NULL REFERENCES artifacts(id) ON DELETE CASCADE,
				is_saved INTEGER NOT NULL DEFAULT 0,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL,
				PRIMARY KEY (user_id, artifact_id)
			)`,
			`CREATE INDEX IF NOT EXISTS idx_ownership_user_user_id ON ownership_user(user_id)`,

			`CREATE TABLE IF NOT EXISTS ownership_anon (
				session_id TEXT NOT NULL REFERENCES anonymous_sessions(id) ON DELETE CASCADE,
				artifact_id TEXT NOT NULL REFERENCES artifacts(id) ON DELETE CASCADE,
				is_saved INTEGER NOT NULL DEFAULT 0,
				created_at TEXT NOT NULL,
				expires_at TEXT NOT NULL,
				PRIMARY KEY (session_id, artifact_id)
			)`,
			`CREATE INDEX IF NOT EXISTS idx_ownership_anon_session_id ON ownership_anon(session_id)`,

			// Token ledger. Unique key is (user_ref, plan), not user_ref
			// alone: a principal can carry more than one plan row, and
			// the plan resolver reconciles across the set.
			`CREATE TABLE IF NOT EXISTS user_token_accounts (
				user_ref TEXT NOT NULL,
				plan TEXT NOT NULL,
				daily_available INTEGER NOT NULL DEFAULT 0,
				purchased_available INTEGER NOT NULL DEFAULT 0,
				daily_limit INTEGER NOT NULL DEFAULT 0,
				last_reset TEXT NOT NULL,
				consumed_today INTEGER NOT NULL DEFAULT 0,
				PRIMARY KEY (user_ref, plan)
			)`,

			// Subscriptions
			`CREATE TABLE IF NOT EXISTS subscriptions (
				id TEXT PRIMARY KEY,
				user_id TEXT NOT NULL,
				external_ref TEXT UNIQUE NOT NULL,
				plan TEXT NOT NULL,
				status TEXT NOT NULL,
				current_period_end TEXT,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_subscriptions_user_id ON subscriptions(user_id)`,
			`CREATE INDEX IF NOT EXISTS idx_subscriptions_external_ref ON subscriptions(external_ref)`,

			// Processed webhook events - idempotency guard for the payment reconciler
			`CREATE TABLE IF NOT EXISTS processed_webhook_events (
				event_id TEXT PRIMARY KEY,
				received_at TEXT NOT NULL
			)`,

			// Memory verses - SM-2 derived spaced repetition state
			`CREATE TABLE IF NOT EXISTS memory_verses (
				id TEXT PRIMARY KEY,
				user_id TEXT NOT NULL,
				reference TEXT NOT NULL,
				verse_text TEXT NOT NULL,
				ease_factor REAL NOT NULL DEFAULT 2.5,
				interval_days INTEGER NOT NULL DEFAULT 0,
				repetitions INTEGER NOT NULL DEFAULT 0,
				next_review TEXT NOT NULL,
				last_reviewed TEXT,
				total_reviews INTEGER NOT NULL DEFAULT 0,
				mastery_level TEXT NOT NULL DEFAULT 'beginner',
				preferred_mode TEXT,
				perfect_recalls INTEGER NOT NULL DEFAULT 0,
				created_at TEXT NOT NULL,
				UNIQUE(user_id, reference)
			)`,
			`CREATE INDEX IF NOT EXISTS idx_memory_verses_user_id ON memory_verses(user_id)`,
			`CREATE INDEX IF NOT EXISTS idx_memory_verses_next_review ON memory_verses(user_id, next_review)`,

			// Per-(verse, mode) practice accuracy, the input to mastery resolution
			`CREATE TABLE IF NOT EXISTS practice_mode_stats (
				user_id TEXT NOT NULL,
				verse_id TEXT NOT NULL REFERENCES memory_verses(id) ON DELETE CASCADE,
				mode TEXT NOT NULL,
				times_practiced INTEGER NOT NULL DEFAULT 0,
				success_rate REAL NOT NULL DEFAULT 0,
				avg_time_seconds INTEGER,
				PRIMARY KEY (user_id, verse_id, mode)
			)`,

			`CREATE TABLE IF NOT EXISTS review_sessions (
				id TEXT PRIMARY KEY,
				user_id TEXT NOT NULL,
				verse_id TEXT NOT NULL REFERENCES memory_verses(id) ON DELETE CASCADE,
				review_time TEXT NOT NULL,
				quality INTEGER NOT NULL,
				confidence INTEGER,
				accuracy INTEGER,
				mode TEXT NOT NULL,
				hints_used INTEGER NOT NULL DEFAULT 0,
				post_ease REAL NOT NULL,
				post_interval INTEGER NOT NULL,
				post_repetitions INTEGER NOT NULL,
				time_spent INTEGER
			)`,
			`CREATE INDEX IF NOT EXISTS idx_review_sessions_verse_id ON review_sessions(verse_id)`,
			`CREATE INDEX IF NOT EXISTS idx_review_sessions_user_id ON review_sessions(user_id)`,

			// Daily review-goal progress and cross-day streaks
			`CREATE TABLE IF NOT EXISTS daily_goals (
				user_id TEXT NOT NULL,
				date TEXT NOT NULL,
				reviews_done INTEGER NOT NULL DEFAULT 0,
				goal_reviews INTEGER NOT NULL DEFAULT 0,
				achieved_bonus INTEGER NOT NULL DEFAULT 0,
				PRIMARY KEY (user_id, date)
			)`,

			`CREATE TABLE IF NOT EXISTS streaks (
				user_id TEXT PRIMARY KEY,
				current_streak INTEGER NOT NULL DEFAULT 0,
				longest_streak INTEGER NOT NULL DEFAULT 0,
				last_active_date TEXT
			)`,

			// Catalog / discovery
			`CREATE TABLE IF NOT EXISTS topics (
				id TEXT PRIMARY KEY,
				title TEXT NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				category TEXT NOT NULL,
				tags_json TEXT NOT NULL DEFAULT '[]',
				key_verses_json TEXT NOT NULL DEFAULT '[]',
				sort_weight INTEGER NOT NULL DEFAULT 0
			)`,
			`CREATE INDEX IF NOT EXISTS idx_topics_category ON topics(category)`,

			`CREATE TABLE IF NOT EXISTS daily_verses (
				date TEXT NOT NULL,
				language TEXT NOT NULL,
				reference TEXT NOT NULL,
				verse_text TEXT NOT NULL,
				PRIMARY KEY (date, language)
			)`,

			`CREATE TABLE IF NOT EXISTS feedback (
				id TEXT PRIMARY KEY,
				artifact_id TEXT REFERENCES artifacts(id) ON DELETE CASCADE,
				user_ref TEXT NOT NULL,
				was_helpful INTEGER NOT NULL DEFAULT 0,
				message TEXT,
				category TEXT NOT NULL DEFAULT 'other',
				sentiment REAL,
				created_at TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_feedback_artifact_id ON feedback(artifact_id)`,
		},
	})
}
