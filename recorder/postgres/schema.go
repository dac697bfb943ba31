package postgres

// Schema is the DDL for the three tables a Recorder needs. Callers apply
// it via their own migration tooling (e.g. golang-migrate); this package
// does not run migrations itself, matching the teacher's convention of
// keeping schema management out of the service binary.
const Schema = `
CREATE TABLE IF NOT EXISTS event_records (
	sequence_id     uuid        NOT NULL,
	position        bigint      NOT NULL,
	topic           text        NOT NULL,
	state           bytea       NOT NULL,
	notification_id bigint,
	pipeline_id     int         NOT NULL DEFAULT 0,
	PRIMARY KEY (sequence_id, position)
);

CREATE UNIQUE INDEX IF NOT EXISTS event_records_notification_id_idx
	ON event_records (pipeline_id, notification_id)
	WHERE notification_id IS NOT NULL;

CREATE TABLE IF NOT EXISTS tracking_records (
	application_name text   NOT NULL,
	upstream_name    text   NOT NULL,
	notification_id  bigint NOT NULL,
	pipeline_id      int    NOT NULL DEFAULT 0,
	PRIMARY KEY (application_name, upstream_name, notification_id, pipeline_id)
);

CREATE TABLE IF NOT EXISTS notification_counter (
	pipeline_id          int PRIMARY KEY,
	max_notification_id  bigint NOT NULL DEFAULT 0
);
`
