// Dev seeding: creates the schema and one demo plan with installments.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/shopspring/decimal"

	"school-payment-ledger/internal/config"
	pg "school-payment-ledger/internal/infra/db/postgres"
	"school-payment-ledger/internal/usecase"
)

const schema = `
CREATE TABLE IF NOT EXISTS payment_plans (
  id                UUID PRIMARY KEY,
  student_id        UUID NOT NULL,
  course_id         UUID,
  total_amount      NUMERIC(12,2) NOT NULL CHECK (total_amount >= 0),
  paid_amount       NUMERIC(12,2) NOT NULL DEFAULT 0,
  balance_amount    NUMERIC(12,2) NOT NULL CHECK (balance_amount >= 0),
  installment_count INT NOT NULL,
  status            TEXT NOT NULL,
  description       TEXT NOT NULL DEFAULT '',
  created_by        TEXT NOT NULL DEFAULT '',
  created_at        TIMESTAMPTZ NOT NULL,
  updated_at        TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_payment_plans_student ON payment_plans (student_id);
CREATE INDEX IF NOT EXISTS idx_payment_plans_course ON payment_plans (course_id);

CREATE TABLE IF NOT EXISTS installments (
  id                   UUID PRIMARY KEY,
  payment_plan_id      UUID NOT NULL REFERENCES payment_plans(id),
  installment_number   INT NOT NULL,
  amount               NUMERIC(12,2) NOT NULL CHECK (amount > 0),
  due_date             TIMESTAMPTZ NOT NULL,
  paid_date            TIMESTAMPTZ,
  status               TEXT NOT NULL,
  receipt_id           TEXT,
  external_payment_ref TEXT,
  remarks              TEXT NOT NULL DEFAULT '',
  created_at           TIMESTAMPTZ NOT NULL,
  updated_at           TIMESTAMPTZ NOT NULL,
  UNIQUE (payment_plan_id, installment_number)
);
CREATE INDEX IF NOT EXISTS idx_installments_due ON installments (status, due_date);

CREATE TABLE IF NOT EXISTS gateway_payments (
  id                 UUID PRIMARY KEY,
  external_intent_id TEXT NOT NULL UNIQUE,
  student_id         UUID NOT NULL,
  installment_id     UUID,
  amount             NUMERIC(12,2) NOT NULL,
  currency           TEXT NOT NULL,
  status             TEXT NOT NULL,
  payment_method     TEXT NOT NULL DEFAULT '',
  error_message      TEXT NOT NULL DEFAULT '',
  created_at         TIMESTAMPTZ NOT NULL,
  updated_at         TIMESTAMPTZ NOT NULL,
  paid_at            TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_gateway_payments_pending ON gateway_payments (status, created_at);
`

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, true)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx := context.Background()
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 2)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	if _, err := pool.Exec(ctx, schema); err != nil {
		log.Fatalf("schema: %v", err)
	}
	log.Println("schema created")

	seedDemoPlan(ctx, pool)
}

func seedDemoPlan(ctx context.Context, pool *pgxpool.Pool) {
	total := decimal.RequireFromString("900.00")
	firstDue := time.Now().UTC().AddDate(0, 1, 0)
	rows, err := usecase.BuildSchedule(total, 3, firstDue)
	if err != nil {
		log.Fatalf("schedule: %v", err)
	}

	planID := uuid.NewString()
	studentID := uuid.NewString()
	now := time.Now().UTC()
	_, err = pool.Exec(ctx, `
INSERT INTO payment_plans (id, student_id, total_amount, paid_amount, balance_amount, installment_count, status, description, created_by, created_at, updated_at)
VALUES ($1,$2,$3,0,$3,$4,'active','demo plan','seed',$5,$5) ON CONFLICT DO NOTHING;`,
		planID, studentID, total, len(rows), now)
	if err != nil {
		log.Fatalf("seed plan: %v", err)
	}

	for _, r := range rows {
		_, err = pool.Exec(ctx, `
INSERT INTO installments (id, payment_plan_id, installment_number, amount, due_date, status, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,'pending',$6,$6) ON CONFLICT DO NOTHING;`,
			uuid.NewString(), planID, r.Number, r.Amount, r.DueDate, now)
		if err != nil {
			log.Fatalf("seed installment %d: %v", r.Number, err)
		}
	}
	log.Printf("seeded plan %s for student %s with %d installments", planID, studentID, len(rows))
}
