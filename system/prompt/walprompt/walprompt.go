// Package walprompt turns Postgres logical replication into Prompter
// wakeups: the instant a commit lands on event_records or
// tracking_records, every subscriber for that row's (upstream, pipeline)
// is prompted to poll — no polling delay between a writer's commit and a
// downstream reader noticing it.
//
// Adapted from the teacher's cdc-worker, which streams the same
// pglogrepl/pgproto3 WAL protocol to decode outbox rows into NATS
// messages. walprompt keeps that entire connect/create-slot/
// resume-from-confirmed-flush-lsn/standby-keepalive loop verbatim in
// spirit, but decodes a row only far enough to read its topic/
// application_name and pipeline_id columns and fire a wakeup — it never
// constructs or republishes a domain event, since that is the
// recorder's and mapper's job, not the replication listener's.
package walprompt

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pglogrepl"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgproto3"
	"go.uber.org/zap"
)

const (
	outputPlugin   = "pgoutput"
	standbyTimeout = 10 * time.Second
)

// Prompter is the subset of system.Prompter a Listener needs — spelled
// out locally so this package does not import system (which would create
// an import cycle with system/prompt/nats-style transports that sit
// alongside, not beneath, package system).
type Prompter interface {
	Publish(ctx context.Context, upstreamName string, pipelineID int) error
}

// Listener streams logical-replication changes for one slot/publication
// pair and republishes them as Prompter wakeups.
type Listener struct {
	ReplicationURL  string // DSN with replication=database
	QueryURL        string // plain DSN, used once to resolve the resume LSN
	SlotName        string
	PublicationName string
	Prompter        Prompter
	Logger          *zap.Logger

	// PipelineIDColumn and NameColumn name the two columns walprompt reads
	// out of every inserted row to build the (upstreamName, pipelineID)
	// pair it prompts on. event_records uses ("topic", "pipeline_id");
	// tracking_records uses ("application_name", "pipeline_id").
	PipelineIDColumn string
	NameColumn       string
}

// Run creates the replication slot if needed, resumes from its
// confirmed_flush_lsn (or the current WAL position for a brand-new
// slot), and streams changes until ctx is cancelled.
func (l *Listener) Run(ctx context.Context) error {
	logger := l.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	conn, err := pgconn.Connect(ctx, l.ReplicationURL)
	if err != nil {
		return fmt.Errorf("walprompt: connect: %w", err)
	}
	defer conn.Close(ctx)

	if _, err := pglogrepl.CreateReplicationSlot(ctx, conn, l.SlotName, outputPlugin,
		pglogrepl.CreateReplicationSlotOptions{Temporary: false}); err != nil {
		logger.Debug("walprompt: replication slot already exists", zap.Error(err))
	}

	sysident, err := pglogrepl.IdentifySystem(ctx, conn)
	if err != nil {
		return fmt.Errorf("walprompt: identify system: %w", err)
	}

	startLSN, err := l.resumeLSN(ctx, sysident.XLogPos)
	if err != nil {
		return err
	}

	pluginArgs := []string{
		"proto_version '2'",
		fmt.Sprintf("publication_names '%s'", l.PublicationName),
	}
	if err := pglogrepl.StartReplication(ctx, conn, l.SlotName, startLSN,
		pglogrepl.StartReplicationOptions{PluginArgs: pluginArgs}); err != nil {
		return fmt.Errorf("walprompt: start replication: %w", err)
	}
	logger.Info("walprompt: replication started",
		zap.String("slot", l.SlotName), zap.String("publication", l.PublicationName))

	return l.stream(ctx, conn, startLSN, logger)
}

// resumeLSN reads pg_replication_slots.confirmed_flush_lsn through a
// plain pgx connection — the replication-protocol connection cannot run
// SQL queries — falling back to the live WAL position for a brand-new
// slot.
func (l *Listener) resumeLSN(ctx context.Context, fallback pglogrepl.LSN) (pglogrepl.LSN, error) {
	pgxConn, err := pgx.Connect(ctx, l.QueryURL)
	if err != nil {
		return fallback, fmt.Errorf("walprompt: query connection: %w", err)
	}
	defer pgxConn.Close(ctx)

	var confirmed *string
	err = pgxConn.QueryRow(ctx,
		"SELECT confirmed_flush_lsn::text FROM pg_replication_slots WHERE slot_name = $1",
		l.SlotName,
	).Scan(&confirmed)
	if err != nil || confirmed == nil || *confirmed == "" {
		return fallback, nil
	}

	lsn, err := pglogrepl.ParseLSN(*confirmed)
	if err != nil {
		return fallback, nil
	}
	return lsn, nil
}

func (l *Listener) stream(ctx context.Context, conn *pgconn.PgConn, startLSN pglogrepl.LSN, logger *zap.Logger) error {
	relations := make(map[uint32]*pglogrepl.RelationMessageV2)
	clientXLogPos := startLSN
	nextStandbyDeadline := time.Now().Add(standbyTimeout)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if time.Now().After(nextStandbyDeadline) {
			if err := pglogrepl.SendStandbyStatusUpdate(ctx, conn,
				pglogrepl.StandbyStatusUpdate{WALWritePosition: clientXLogPos}); err != nil {
				logger.Error("walprompt: standby status update failed", zap.Error(err))
			}
			nextStandbyDeadline = time.Now().Add(standbyTimeout)
		}

		rawMsg, err := conn.ReceiveMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Error("walprompt: receive message failed", zap.Error(err))
			continue
		}

		if errResp, ok := rawMsg.(*pgproto3.ErrorResponse); ok {
			return fmt.Errorf("walprompt: postgres error: %s", errResp.Message)
		}

		copyData, ok := rawMsg.(*pgproto3.CopyData)
		if !ok || len(copyData.Data) == 0 {
			continue
		}

		switch copyData.Data[0] {
		case pglogrepl.XLogDataByteID:
			xld, err := pglogrepl.ParseXLogData(copyData.Data[1:])
			if err != nil {
				logger.Error("walprompt: parse xlog data failed", zap.Error(err))
				continue
			}

			logicalMsg, err := pglogrepl.ParseV2(xld.WALData, false)
			if err != nil {
				logger.Error("walprompt: parse logical message failed", zap.Error(err))
				continue
			}

			switch msg := logicalMsg.(type) {
			case *pglogrepl.RelationMessageV2:
				relations[msg.RelationID] = msg
			case *pglogrepl.InsertMessageV2:
				l.handleInsert(ctx, relations, msg, logger)
			}

			clientXLogPos = xld.WALStart + pglogrepl.LSN(len(xld.WALData))

		case pglogrepl.PrimaryKeepaliveMessageByteID:
			pkm, err := pglogrepl.ParsePrimaryKeepaliveMessage(copyData.Data[1:])
			if err != nil {
				logger.Error("walprompt: parse keepalive failed", zap.Error(err))
				continue
			}
			if pkm.ReplyRequested {
				nextStandbyDeadline = time.Time{}
			}
		}
	}
}

func (l *Listener) handleInsert(ctx context.Context, relations map[uint32]*pglogrepl.RelationMessageV2, msg *pglogrepl.InsertMessageV2, logger *zap.Logger) {
	rel, ok := relations[msg.RelationID]
	if !ok {
		return
	}

	values := make(map[string]string, len(msg.Tuple.Columns))
	for i, col := range msg.Tuple.Columns {
		if i >= len(rel.Columns) {
			break
		}
		if col.DataType == 't' {
			values[rel.Columns[i].Name] = string(col.Data)
		}
	}

	name, pipelineID, ok := extractWakeup(values, l.NameColumn, l.PipelineIDColumn)
	if !ok {
		return
	}

	if err := l.Prompter.Publish(ctx, name, pipelineID); err != nil {
		logger.Warn("walprompt: publish failed", zap.Error(err))
	}
}

// extractWakeup pulls the (upstreamName, pipelineID) pair a decoded row's
// column values imply, given which columns name them. Split out from
// handleInsert so it can be exercised without a live WAL stream.
func extractWakeup(values map[string]string, nameColumn, pipelineIDColumn string) (name string, pipelineID int, ok bool) {
	name = values[nameColumn]
	pipelineIDStr := values[pipelineIDColumn]
	if name == "" || pipelineIDStr == "" {
		return "", 0, false
	}
	if _, err := fmt.Sscanf(pipelineIDStr, "%d", &pipelineID); err != nil {
		return "", 0, false
	}
	return name, pipelineID, true
}
