package repository

import (
	"context"

	"github.com/Domenick1991/skybooking/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type CompanyRepository interface {
	List(ctx context.Context) ([]domain.Company, error)
	ListActive(ctx context.Context) ([]domain.Company, error)
	GetByID(ctx context.Context, id int64) (*domain.Company, error)
	GetByManager(ctx context.Context, managerID int64) (*domain.Company, error)
	Create(ctx context.Context, draft domain.CompanyDraft) (*domain.Company, error)
	Update(ctx context.Context, id int64, draft domain.CompanyDraft) (*domain.Company, error)
	SetActive(ctx context.Context, id int64, active bool) (*domain.Company, error)
}

type PGCompanyRepository struct {
	db *pgxpool.Pool
}

func NewCompanyRepository(db *pgxpool.Pool) CompanyRepository {
	return &PGCompanyRepository{db: db}
}

const companyColumns = `id, name, code, manager_id, is_active, created_at`

func scanCompany(row pgx.Row) (*domain.Company, error) {
	var c domain.Company
	if err := row.Scan(&c.ID, &c.Name, &c.Code, &c.ManagerID, &c.IsActive, &c.CreatedAt); err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

func (r *PGCompanyRepository) list(ctx context.Context, query string) ([]domain.Company, error) {
	rows, err := conn(ctx, r.db).Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	companies := make([]domain.Company, 0)
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, err
		}
		companies = append(companies, *c)
	}
	return companies, rows.Err()
}

func (r *PGCompanyRepository) List(ctx context.Context) ([]domain.Company, error) {
	return r.list(ctx, `SELECT `+companyColumns+` FROM companies ORDER BY name, id`)
}

func (r *PGCompanyRepository) ListActive(ctx context.Context) ([]domain.Company, error) {
	return r.list(ctx, `SELECT `+companyColumns+` FROM companies WHERE is_active ORDER BY name, id`)
}

func (r *PGCompanyRepository) GetByID(ctx context.Context, id int64) (*domain.Company, error) {
	return scanCompany(conn(ctx, r.db).QueryRow(ctx, `SELECT `+companyColumns+` FROM companies WHERE id = $1`, id))
}

func (r *PGCompanyRepository) GetByManager(ctx context.Context, managerID int64) (*domain.Company, error) {
	return scanCompany(conn(ctx, r.db).QueryRow(ctx, `SELECT `+companyColumns+` FROM companies WHERE manager_id = $1`, managerID))
}

func (r *PGCompanyRepository) Create(ctx context.Context, d domain.CompanyDraft) (*domain.Company, error) {
	return scanCompany(conn(ctx, r.db).QueryRow(ctx, `INSERT INTO companies (name, code, manager_id)
		VALUES ($1, $2, $3) RETURNING `+companyColumns, d.Name, d.Code, d.ManagerID))
}

func (r *PGCompanyRepository) Update(ctx context.Context, id int64, d domain.CompanyDraft) (*domain.Company, error) {
	return scanCompany(conn(ctx, r.db).QueryRow(ctx, `UPDATE companies SET name = $2, code = $3, manager_id = $4
		WHERE id = $1 RETURNING `+companyColumns, id, d.Name, d.Code, d.ManagerID))
}

func (r *PGCompanyRepository) SetActive(ctx context.Context, id int64, active bool) (*domain.Company, error) {
	return scanCompany(conn(ctx, r.db).QueryRow(ctx, `UPDATE companies SET is_active = $2
		WHERE id = $1 RETURNING `+companyColumns, id, active))
}

var _ CompanyRepository = (*PGCompanyRepository)(nil)
