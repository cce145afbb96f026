package storage

var schema = []string{
	`CREATE TABLE IF NOT EXISTS content_sources (
		id VARCHAR(36) PRIMARY KEY,
		name TEXT NOT NULL,
		url TEXT NOT NULL,
		source_type VARCHAR(20) NOT NULL,
		category VARCHAR(50) NOT NULL DEFAULT '',
		geographic_focus TEXT NOT NULL DEFAULT '',
		keywords TEXT[] NOT NULL DEFAULT '{}',
		active BOOLEAN NOT NULL DEFAULT TRUE,
		schedule TEXT NOT NULL DEFAULT '',
		total_attempts INTEGER NOT NULL DEFAULT 0,
		successful_attempts INTEGER NOT NULL DEFAULT 0,
		consecutive_failures INTEGER NOT NULL DEFAULT 0,
		success_rate DOUBLE PRECISION NOT NULL DEFAULT 0,
		last_error_message TEXT NOT NULL DEFAULT '',
		last_attempt_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS pipeline_items (
		id VARCHAR(36) PRIMARY KEY,
		source_id VARCHAR(36),
		stage VARCHAR(20) NOT NULL,
		content_type VARCHAR(50) NOT NULL,
		raw_data JSONB NOT NULL,
		processed_data JSONB NOT NULL,
		relevance_score INTEGER NOT NULL,
		status VARCHAR(20) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS pipeline_items_status_idx ON pipeline_items (status, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS events (
		id VARCHAR(36) PRIMARY KEY,
		pipeline_item_id VARCHAR(36),
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		location TEXT NOT NULL DEFAULT '',
		venue TEXT NOT NULL DEFAULT '',
		event_date VARCHAR(10) NOT NULL,
		start_time VARCHAR(5) NOT NULL,
		end_time VARCHAR(5) NOT NULL,
		category VARCHAR(50) NOT NULL,
		neighborhood TEXT NOT NULL,
		price_range VARCHAR(20) NOT NULL,
		featured BOOLEAN NOT NULL DEFAULT FALSE,
		source_url TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS articles (
		id VARCHAR(36) PRIMARY KEY,
		pipeline_item_id VARCHAR(36),
		title TEXT NOT NULL,
		slug TEXT NOT NULL UNIQUE,
		excerpt TEXT NOT NULL DEFAULT '',
		body TEXT NOT NULL DEFAULT '',
		category VARCHAR(50) NOT NULL,
		tags TEXT[] NOT NULL DEFAULT '{}',
		author TEXT NOT NULL,
		published_at TIMESTAMPTZ NOT NULL,
		source_url TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS events_pipeline_item_idx ON events (pipeline_item_id) WHERE pipeline_item_id IS NOT NULL`,
	`CREATE UNIQUE INDEX IF NOT EXISTS articles_pipeline_item_idx ON articles (pipeline_item_id) WHERE pipeline_item_id IS NOT NULL`,
	`CREATE TABLE IF NOT EXISTS feed_validation_cache (
		url TEXT PRIMARY KEY,
		is_valid BOOLEAN NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		item_count INTEGER NOT NULL DEFAULT 0,
		error_message TEXT NOT NULL DEFAULT '',
		feed_items JSONB NOT NULL DEFAULT '[]',
		last_validated TIMESTAMPTZ NOT NULL
	)`,
}
