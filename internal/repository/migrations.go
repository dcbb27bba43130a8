package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mentorly/backend/internal/models"
)

// schema creates every table the ledger needs. It runs on startup and is safe
// to re-run. References between collections are not foreign keys; the
// integrity report flags orphans.
const schema = `
CREATE TABLE IF NOT EXISTS users (
    id                UUID PRIMARY KEY,
    email             TEXT NOT NULL UNIQUE,
    name              TEXT NOT NULL DEFAULT '',
    role              TEXT NOT NULL,
    password_hash     TEXT NOT NULL DEFAULT '',
    credits           BIGINT NOT NULL DEFAULT 0,
    payable_credits   BIGINT NOT NULL DEFAULT 0,
    reserved_credits  BIGINT NOT NULL DEFAULT 0,
    liability_credits BIGINT NOT NULL DEFAULT 0,
    balance           NUMERIC(14,2) NOT NULL DEFAULT 0,
    hourly_rate       BIGINT NOT NULL DEFAULT 0,
    referral_code     TEXT NOT NULL DEFAULT '',
    referred_by       UUID,
    payout_method     TEXT NOT NULL DEFAULT '',
    level_id          UUID,
    version           BIGINT NOT NULL DEFAULT 1,
    created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
    CONSTRAINT users_credits_non_negative CHECK (credits >= 0 OR role = 'system'),
    CONSTRAINT users_reserved_covered CHECK (reserved_credits >= 0 AND payable_credits >= reserved_credits),
    CONSTRAINT users_liability_non_negative CHECK (liability_credits >= 0)
);

CREATE TABLE IF NOT EXISTS credit_history (
    id            UUID PRIMARY KEY,
    user_id       UUID NOT NULL,
    kind          TEXT NOT NULL,
    delta         BIGINT NOT NULL,
    balance_after BIGINT NOT NULL,
    reference_id  UUID,
    note          TEXT NOT NULL DEFAULT '',
    created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS bookings (
    id                 UUID PRIMARY KEY,
    mentee_id          UUID NOT NULL,
    mentor_id          UUID NOT NULL,
    scheduled_at       TIMESTAMPTZ NOT NULL,
    duration_minutes   INT NOT NULL DEFAULT 60,
    total_cost         BIGINT NOT NULL CHECK (total_cost >= 0),
    status             TEXT NOT NULL,
    credit_status      TEXT NOT NULL,
    pre_dispute_status TEXT NOT NULL DEFAULT '',
    cancel_reason      TEXT NOT NULL DEFAULT '',
    dispute_reason     TEXT NOT NULL DEFAULT '',
    dispute_evidence   TEXT NOT NULL DEFAULT '',
    dispute_date       TIMESTAMPTZ,
    resolution_note    TEXT NOT NULL DEFAULT '',
    resolved_at        TIMESTAMPTZ,
    completed_at       TIMESTAMPTZ,
    version            BIGINT NOT NULL DEFAULT 1,
    created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS system_credit_ledger (
    id              UUID PRIMARY KEY,
    booking_id      UUID NOT NULL,
    from_account_id UUID NOT NULL,
    to_account_id   UUID NOT NULL,
    amount          BIGINT NOT NULL CHECK (amount >= 0),
    status          TEXT NOT NULL,
    kind            TEXT NOT NULL,
    note            TEXT NOT NULL DEFAULT '',
    created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS mentor_earnings (
    id         UUID PRIMARY KEY,
    mentor_id  UUID NOT NULL,
    booking_id UUID NOT NULL UNIQUE,
    amount     BIGINT NOT NULL,
    paid_credits BIGINT NOT NULL DEFAULT 0 CHECK (paid_credits >= 0 AND paid_credits <= amount),
    status     TEXT NOT NULL,
    payout_id  UUID,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS payouts (
    id                     UUID PRIMARY KEY,
    user_id                UUID NOT NULL,
    user_role              TEXT NOT NULL,
    credits                BIGINT NOT NULL CHECK (credits > 0),
    amount_usd             NUMERIC(14,2) NOT NULL,
    credits_deducted       BIGINT NOT NULL DEFAULT 0,
    method                 TEXT NOT NULL DEFAULT '',
    note                   TEXT NOT NULL DEFAULT '',
    status                 TEXT NOT NULL,
    admin_note             TEXT NOT NULL DEFAULT '',
    rejection_reason       TEXT NOT NULL DEFAULT '',
    evidence_file          TEXT NOT NULL DEFAULT '',
    payment_transaction_id UUID,
    requested_at           TIMESTAMPTZ NOT NULL DEFAULT now(),
    processed_at           TIMESTAMPTZ,
    paid_at                TIMESTAMPTZ,
    version                BIGINT NOT NULL DEFAULT 1,
    updated_at             TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS transactions (
    id                UUID PRIMARY KEY,
    user_id           UUID NOT NULL,
    type              TEXT NOT NULL,
    status            TEXT NOT NULL,
    amount_usd        NUMERIC(14,2) NOT NULL DEFAULT 0,
    credits           BIGINT NOT NULL DEFAULT 0,
    related_entity_id UUID,
    evidence_file     TEXT NOT NULL DEFAULT '',
    method            TEXT NOT NULL DEFAULT '',
    note              TEXT NOT NULL DEFAULT '',
    created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS provider_levels (
    id                 UUID PRIMARY KEY,
    name               TEXT NOT NULL,
    commission_percent NUMERIC(5,2) NOT NULL CHECK (commission_percent >= 0 AND commission_percent <= 100)
);

CREATE TABLE IF NOT EXISTS provider_commissions (
    id                    UUID PRIMARY KEY,
    provider_id           UUID NOT NULL,
    topup_transaction_id  UUID NOT NULL,
    payer_id              UUID NOT NULL,
    topup_amount_usd      NUMERIC(14,2) NOT NULL,
    commission_rate       NUMERIC(7,4) NOT NULL,
    commission_amount_usd NUMERIC(14,2) NOT NULL,
    commission_credits    BIGINT NOT NULL DEFAULT 0,
    paid_credits          BIGINT NOT NULL DEFAULT 0 CHECK (paid_credits >= 0 AND paid_credits <= commission_credits),
    status                TEXT NOT NULL,
    created_at            TIMESTAMPTZ NOT NULL DEFAULT now(),
    paid_at               TIMESTAMPTZ,
    UNIQUE (topup_transaction_id, provider_id)
);

CREATE TABLE IF NOT EXISTS pricing_countries (
    code       TEXT PRIMARY KEY,
    name       TEXT NOT NULL,
    multiplier NUMERIC(6,3) NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS pricing_groups (
    id         UUID PRIMARY KEY,
    name       TEXT NOT NULL,
    multiplier NUMERIC(6,3) NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS system_logs (
    id  UUID PRIMARY KEY,
    ts  TIMESTAMPTZ NOT NULL DEFAULT now(),
    lvl TEXT NOT NULL,
    src TEXT NOT NULL,
    msg TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_credit_history_user_id ON credit_history(user_id);
CREATE INDEX IF NOT EXISTS idx_ledger_booking_id ON system_credit_ledger(booking_id);
CREATE UNIQUE INDEX IF NOT EXISTS idx_ledger_one_hold ON system_credit_ledger(booking_id) WHERE kind = 'hold';
ALTER TABLE mentor_earnings ADD COLUMN IF NOT EXISTS paid_credits BIGINT NOT NULL DEFAULT 0;
ALTER TABLE provider_commissions ADD COLUMN IF NOT EXISTS paid_credits BIGINT NOT NULL DEFAULT 0;

CREATE INDEX IF NOT EXISTS idx_earnings_mentor_status ON mentor_earnings(mentor_id, status);
CREATE INDEX IF NOT EXISTS idx_payouts_user_id ON payouts(user_id);
CREATE INDEX IF NOT EXISTS idx_payouts_status ON payouts(status);
CREATE INDEX IF NOT EXISTS idx_transactions_user_id ON transactions(user_id);
CREATE INDEX IF NOT EXISTS idx_commissions_provider_status ON provider_commissions(provider_id, status);
CREATE INDEX IF NOT EXISTS idx_system_logs_ts ON system_logs(ts);
`

// Migrate applies the schema and seeds the system account.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	_, err := pool.Exec(ctx, `
		INSERT INTO users (id, email, name, role)
		VALUES ($1, 'system@mentorly.internal', 'System', $2)
		ON CONFLICT (id) DO NOTHING
	`, models.SystemAccountID, models.RoleSystem)
	if err != nil {
		return fmt.Errorf("seed system account: %w", err)
	}
	return nil
}
