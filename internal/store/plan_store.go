package store

import "context"

type PlanStore struct {
	db DB
}

type Plan struct {
	ID        string `db:"id"`
	Network   string `db:"network"`
	Service   string `db:"service"`
	Code      string `db:"code"`
	Name      string `db:"name"`
	CostPrice int64  `db:"cost_price"`
	SellPrice int64  `db:"sell_price"`
	Cycles    int    `db:"cycles"`
	Active    bool   `db:"active"`
}

func NewPlanStore(db DB) *PlanStore {
	return &PlanStore{db: db}
}

func (s *PlanStore) GetByCode(ctx context.Context, network, service, code string) (Plan, bool, error) {
	var row Plan
	err := s.db.GetContext(ctx, &row, `
		SELECT id, network, service, code, name, cost_price, sell_price, cycles, active
		FROM plans
		WHERE network = $1 AND service = $2 AND code = $3 AND active = TRUE
	`, network, service, code)
	if err != nil {
		if isNoRows(err) {
			return Plan{}, false, nil
		}
		return Plan{}, false, err
	}
	return row, true, nil
}

func (s *PlanStore) ListByService(ctx context.Context, network, service string) ([]Plan, error) {
	var rows []Plan
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, network, service, code, name, cost_price, sell_price, cycles, active
		FROM plans
		WHERE network = $1 AND service = $2 AND active = TRUE
		ORDER BY sell_price
	`, network, service)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *PlanStore) Upsert(ctx context.Context, tx Execer, plan Plan) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO plans (id, network, service, code, name, cost_price, sell_price, cycles, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (network, service, code)
		DO UPDATE SET name = $5, cost_price = $6, sell_price = $7, cycles = $8, active = $9
	`, plan.ID, plan.Network, plan.Service, plan.Code, plan.Name, plan.CostPrice, plan.SellPrice, plan.Cycles, plan.Active)
	return err
}
