package migration

// getAllMigrations retorna todas as migrações disponíveis
func getAllMigrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create_users_table",
			Up: `
				-- Usuários do login embutido (identidade quando não há host externo)
				CREATE TABLE users (
					id SERIAL PRIMARY KEY,
					username VARCHAR(100) UNIQUE NOT NULL,
					password_hash VARCHAR(255) NOT NULL,
					created_at TIMESTAMP NOT NULL,
					updated_at TIMESTAMP NOT NULL
				);
			`,
			UpSQLite: `
				CREATE TABLE users (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					username VARCHAR(100) UNIQUE NOT NULL,
					password_hash VARCHAR(255) NOT NULL,
					created_at TIMESTAMP NOT NULL,
					updated_at TIMESTAMP NOT NULL
				);
			`,
			Down: `
				DROP TABLE IF EXISTS users;
			`,
		},
		{
			Version: 2,
			Name:    "create_user_rate_preferences_table",
			Up: `
				-- Taxas salvas por usuário: uma linha por usuário, sempre sobrescrita
				CREATE TABLE user_rate_preferences (
					user_id VARCHAR(100) PRIMARY KEY,
					hourly_rate BIGINT NOT NULL DEFAULT 0,
					contractor_fee_percent BIGINT NOT NULL DEFAULT 0,
					created_at TIMESTAMP NOT NULL,
					updated_at TIMESTAMP NOT NULL
				);
			`,
			Down: `
				DROP TABLE IF EXISTS user_rate_preferences;
			`,
		},
		{
			Version: 3,
			Name:    "create_preference_indexes",
			Up: `
				CREATE INDEX idx_user_rate_preferences_updated_at ON user_rate_preferences(updated_at);
			`,
			Down: `
				DROP INDEX IF EXISTS idx_user_rate_preferences_updated_at;
			`,
		},
	}
}
