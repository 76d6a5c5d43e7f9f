package db

// Times are unix milliseconds. exam_attempts.version backs compare-and-swap writes,
// and one_open_attempt allows a single unfinished attempt per user and exam type.

const schemaSQLite = `
PRAGMA foreign_keys=ON;

CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  email TEXT NOT NULL UNIQUE,
  password_hash TEXT NOT NULL,
  role TEXT NOT NULL CHECK (role IN ('admin','examiner')),
  created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS examiners (
  id TEXT PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
  full_name TEXT NOT NULL,
  age INTEGER NOT NULL,
  date_deployed TEXT NOT NULL,
  designation TEXT NOT NULL,
  store_area TEXT NOT NULL,
  created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS questions (
  id TEXT PRIMARY KEY,
  exam_type TEXT NOT NULL,
  question_type TEXT NOT NULL,
  question_text TEXT NOT NULL,
  options_json TEXT NOT NULL DEFAULT 'null',
  correct_answer_json TEXT NOT NULL DEFAULT 'null',
  image_url TEXT NOT NULL DEFAULT '',
  created_by TEXT NOT NULL DEFAULT '',
  created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS questions_exam_type ON questions(exam_type);

CREATE TABLE IF NOT EXISTS exam_attempts (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  exam_type TEXT NOT NULL,
  question_ids_json TEXT NOT NULL,
  answers_json TEXT NOT NULL,
  started_at INTEGER NOT NULL,
  completed_at INTEGER,
  score INTEGER,
  total_questions INTEGER NOT NULL,
  time_taken INTEGER,
  allotted_seconds INTEGER NOT NULL,
  updated_at INTEGER NOT NULL,
  version INTEGER NOT NULL DEFAULT 1,
  CHECK ((completed_at IS NULL) = (score IS NULL) AND (score IS NULL) = (time_taken IS NULL))
);
CREATE UNIQUE INDEX IF NOT EXISTS one_open_attempt ON exam_attempts(user_id, exam_type) WHERE completed_at IS NULL;
CREATE INDEX IF NOT EXISTS exam_attempts_user ON exam_attempts(user_id, started_at);

CREATE TABLE IF NOT EXISTS exam_settings (
  id INTEGER PRIMARY KEY CHECK (id = 1),
  default_time INTEGER NOT NULL DEFAULT 60,
  warning_time INTEGER NOT NULL DEFAULT 5,
  auto_submit INTEGER NOT NULL DEFAULT 0,
  updated_at INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS event_log (
  seq INTEGER PRIMARY KEY AUTOINCREMENT,
  site_id TEXT NOT NULL DEFAULT 'local',
  typ TEXT NOT NULL,                         -- e.g., AttemptFinalized
  key TEXT NOT NULL,                         -- natural key: attemptID
  data TEXT NOT NULL,                        -- JSON payload
  created_at INTEGER NOT NULL
);
`

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  email TEXT NOT NULL UNIQUE,
  password_hash TEXT NOT NULL,
  role TEXT NOT NULL CHECK (role IN ('admin','examiner')),
  created_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS examiners (
  id TEXT PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
  full_name TEXT NOT NULL,
  age INTEGER NOT NULL,
  date_deployed TEXT NOT NULL,
  designation TEXT NOT NULL,
  store_area TEXT NOT NULL,
  created_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS questions (
  id TEXT PRIMARY KEY,
  exam_type TEXT NOT NULL,
  question_type TEXT NOT NULL,
  question_text TEXT NOT NULL,
  options_json TEXT NOT NULL DEFAULT 'null',
  correct_answer_json TEXT NOT NULL DEFAULT 'null',
  image_url TEXT NOT NULL DEFAULT '',
  created_by TEXT NOT NULL DEFAULT '',
  created_at BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS questions_exam_type ON questions(exam_type);

CREATE TABLE IF NOT EXISTS exam_attempts (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  exam_type TEXT NOT NULL,
  question_ids_json TEXT NOT NULL,
  answers_json TEXT NOT NULL,
  started_at BIGINT NOT NULL,
  completed_at BIGINT,
  score INTEGER,
  total_questions INTEGER NOT NULL,
  time_taken INTEGER,
  allotted_seconds INTEGER NOT NULL,
  updated_at BIGINT NOT NULL,
  version BIGINT NOT NULL DEFAULT 1,
  CHECK ((completed_at IS NULL) = (score IS NULL) AND (score IS NULL) = (time_taken IS NULL))
);
CREATE UNIQUE INDEX IF NOT EXISTS one_open_attempt ON exam_attempts(user_id, exam_type) WHERE completed_at IS NULL;
CREATE INDEX IF NOT EXISTS exam_attempts_user ON exam_attempts(user_id, started_at);

CREATE TABLE IF NOT EXISTS exam_settings (
  id INTEGER PRIMARY KEY CHECK (id = 1),
  default_time INTEGER NOT NULL DEFAULT 60,
  warning_time INTEGER NOT NULL DEFAULT 5,
  auto_submit BOOLEAN NOT NULL DEFAULT FALSE,
  updated_at BIGINT NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS event_log (
  seq BIGSERIAL PRIMARY KEY,
  site_id TEXT NOT NULL DEFAULT 'local',
  typ TEXT NOT NULL,
  key TEXT NOT NULL,
  data TEXT NOT NULL,
  created_at BIGINT NOT NULL
);
`
