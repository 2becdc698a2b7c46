// Package postgres provides PostgreSQL repository implementations with integration tests
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/schedcore/schedcore/internal/entity"
)

// PostgresTestHelper provides utilities for PostgreSQL integration tests
type PostgresTestHelper struct {
	db        *sql.DB
	container testcontainers.Container
	ctx       context.Context
}

// NewPostgresTestHelper creates and starts a PostgreSQL container for testing
func NewPostgresTestHelper(ctx context.Context, t *testing.T) *PostgresTestHelper {
	req := testcontainers.ContainerRequest{
		Image:        "postgres:15-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "schedcore_test",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(30 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start PostgreSQL container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	connStr := fmt.Sprintf("postgres://test:test@%s:%s/schedcore_test?sslmode=disable",
		host, port.Port())

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		t.Fatalf("Failed to open database connection: %v", err)
	}

	if err := db.PingContext(ctx); err != nil {
		t.Fatalf("Failed to ping database: %v", err)
	}

	if err := createTestTables(ctx, db); err != nil {
		t.Fatalf("Failed to create test tables: %v", err)
	}

	return &PostgresTestHelper{
		db:        db,
		container: container,
		ctx:       ctx,
	}
}

// Close stops the PostgreSQL container and closes the database connection
func (h *PostgresTestHelper) Close(t *testing.T) {
	if err := h.db.Close(); err != nil {
		t.Logf("Warning: failed to close database: %v", err)
	}

	if err := h.container.Terminate(h.ctx); err != nil {
		t.Logf("Warning: failed to terminate container: %v", err)
	}
}

// DB returns the database connection
func (h *PostgresTestHelper) DB() *sql.DB {
	return h.db
}

// ClearTables truncates all tables (useful for test isolation)
func (h *PostgresTestHelper) ClearTables(ctx context.Context, t *testing.T) {
	tables := []string{
		"assignments",
		"absences",
		"swap_records",
		"idempotency_records",
		"audit_logs",
		"rotation_templates",
		"blocks",
		"persons",
	}

	for _, table := range tables {
		if _, err := h.db.ExecContext(ctx, fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table)); err != nil {
			t.Logf("Warning: failed to truncate table %s: %v", table, err)
		}
	}
}

// createTestTables creates all necessary tables for testing
func createTestTables(ctx context.Context, db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS persons (
		id UUID PRIMARY KEY,
		role VARCHAR(20) NOT NULL,
		pgy_level INTEGER NOT NULL DEFAULT 0,
		credentials JSONB,
		active BOOLEAN DEFAULT true,
		name VARCHAR(255) NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
		deleted_at TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS blocks (
		id UUID PRIMARY KEY,
		date TIMESTAMP NOT NULL,
		session VARCHAR(2) NOT NULL,
		UNIQUE(date, session)
	);

	CREATE TABLE IF NOT EXISTS rotation_templates (
		id UUID PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		activity_type VARCHAR(50) NOT NULL,
		granularity VARCHAR(50) NOT NULL,
		eligible_roles TEXT[] DEFAULT '{}',
		min_pgy INTEGER DEFAULT 0,
		max_pgy INTEGER DEFAULT 0,
		required_credentials TEXT[] DEFAULT '{}',
		coverage_min INTEGER DEFAULT 0,
		coverage_target INTEGER DEFAULT 0,
		coverage_max INTEGER DEFAULT 0,
		duty_hours_am DOUBLE PRECISION DEFAULT 0,
		duty_hours_pm DOUBLE PRECISION DEFAULT 0,
		at_home_call BOOLEAN DEFAULT false,
		hours_attribution VARCHAR(50) NOT NULL
	);

	CREATE TABLE IF NOT EXISTS assignments (
		id UUID PRIMARY KEY,
		person_id UUID NOT NULL REFERENCES persons(id),
		block_id UUID NOT NULL REFERENCES blocks(id),
		rotation_template_id UUID NOT NULL REFERENCES rotation_templates(id),
		actual_hours DOUBLE PRECISION,
		created_at TIMESTAMP NOT NULL DEFAULT NOW(),
		created_by VARCHAR(255),
		source_run_id UUID,
		source_swap_id UUID,
		source VARCHAR(20) NOT NULL,
		UNIQUE(person_id, block_id)
	);

	CREATE TABLE IF NOT EXISTS absences (
		id UUID PRIMARY KEY,
		person_id UUID NOT NULL REFERENCES persons(id),
		start_date TIMESTAMP NOT NULL,
		end_date TIMESTAMP NOT NULL,
		reason VARCHAR(50) NOT NULL
	);

	CREATE TABLE IF NOT EXISTS swap_records (
		id UUID PRIMARY KEY,
		type VARCHAR(20) NOT NULL,
		status VARCHAR(20) NOT NULL,
		participants JSONB,
		compat_score DOUBLE PRECISION,
		requested_at TIMESTAMP NOT NULL,
		validated_at TIMESTAMP,
		executed_at TIMESTAMP,
		rolled_back_at TIMESTAMP,
		rejected_reason VARCHAR(255),
		requested_by UUID
	);

	CREATE TABLE IF NOT EXISTS idempotency_records (
		id UUID PRIMARY KEY,
		key VARCHAR(255) NOT NULL UNIQUE,
		body_hash VARCHAR(255) NOT NULL,
		result_json JSONB,
		created_at TIMESTAMP NOT NULL DEFAULT NOW(),
		expires_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS audit_logs (
		id UUID PRIMARY KEY,
		actor VARCHAR(255),
		action VARCHAR(255) NOT NULL,
		resource VARCHAR(255),
		created_at TIMESTAMP NOT NULL DEFAULT NOW(),
		details JSONB
	);

	CREATE INDEX IF NOT EXISTS idx_assignments_person ON assignments(person_id);
	CREATE INDEX IF NOT EXISTS idx_assignments_block ON assignments(block_id);
	CREATE INDEX IF NOT EXISTS idx_absences_person ON absences(person_id);
	CREATE INDEX IF NOT EXISTS idx_swap_records_status ON swap_records(status);
	CREATE INDEX IF NOT EXISTS idx_audit_logs_resource ON audit_logs(resource);
	`

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

// TestPersonRepository_CRUD tests CRUD operations for PersonRepository
func TestPersonRepository_CRUD(t *testing.T) {
	ctx := context.Background()
	helper := NewPostgresTestHelper(ctx, t)
	defer helper.Close(t)

	repo := NewPersonRepository(helper.DB())

	person := &entity.Person{
		Role:      entity.RoleTrainee,
		PGYLevel:  2,
		Name:      "Test Person",
		Active:    true,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}

	err := repo.Create(ctx, person)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if person.ID == uuid.Nil {
		t.Fatal("Create should set ID")
	}

	retrieved, err := repo.GetByID(ctx, person.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if retrieved.Name != person.Name {
		t.Fatalf("GetByID returned wrong person: expected %s, got %s", person.Name, retrieved.Name)
	}

	person.Name = "Updated Name"
	person.UpdatedAt = time.Now().UTC()
	if err := repo.Update(ctx, person); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	updated, _ := repo.GetByID(ctx, person.ID)
	if updated.Name != "Updated Name" {
		t.Fatalf("Update didn't persist: expected 'Updated Name', got '%s'", updated.Name)
	}

	active, err := repo.ListActive(ctx)
	if err != nil {
		t.Fatalf("ListActive failed: %v", err)
	}
	if len(active) != 1 {
		t.Fatalf("ListActive should return 1, got %d", len(active))
	}

	if err := repo.Delete(ctx, person.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	_, err = repo.GetByID(ctx, person.ID)
	if err == nil {
		t.Fatal("Soft delete should make record inaccessible")
	}
}

// TestAssignmentRepository_CRUD tests CRUD operations and the batched
// block-IDs lookup used to avoid N+1 queries.
func TestAssignmentRepository_CRUD(t *testing.T) {
	ctx := context.Background()
	helper := NewPostgresTestHelper(ctx, t)
	defer helper.Close(t)

	personRepo := NewPersonRepository(helper.DB())
	blockRepo := NewBlockRepository(helper.DB())
	templateRepo := NewRotationTemplateRepository(helper.DB())
	assignmentRepo := NewAssignmentRepository(helper.DB())

	person := &entity.Person{Role: entity.RoleTrainee, PGYLevel: 1, Name: "P1", Active: true, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	if err := personRepo.Create(ctx, person); err != nil {
		t.Fatalf("failed to create person: %v", err)
	}

	block := &entity.Block{Date: time.Now().Truncate(24 * time.Hour), Session: entity.SessionAM}
	if err := blockRepo.Create(ctx, block); err != nil {
		t.Fatalf("failed to create block: %v", err)
	}

	template := &entity.RotationTemplate{
		Name:             "Inpatient Wards",
		ActivityType:     entity.ActivityInpatient,
		Granularity:      entity.GranularityHalfBlock,
		HoursAttribution: entity.HoursNominalDefault,
		Coverage:         entity.CoverageRequirement{Min: 1, Target: 2, Max: 3},
	}
	if err := templateRepo.Create(ctx, template); err != nil {
		t.Fatalf("failed to create rotation template: %v", err)
	}

	assignment := &entity.Assignment{
		PersonID:           person.ID,
		BlockID:            block.ID,
		RotationTemplateID: template.ID,
		Source:             entity.AssignmentSourceSolver,
		CreatedAt:          time.Now(),
	}
	if err := assignmentRepo.Create(ctx, assignment); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if assignment.ID == uuid.Nil {
		t.Fatal("Create should set ID")
	}

	retrieved, err := assignmentRepo.GetByID(ctx, assignment.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if retrieved.PersonID != person.ID {
		t.Fatalf("GetByID returned wrong assignment")
	}

	byBlocks, err := assignmentRepo.GetByBlockIDs(ctx, []uuid.UUID{block.ID})
	if err != nil {
		t.Fatalf("GetByBlockIDs failed: %v", err)
	}
	if len(byBlocks) != 1 {
		t.Fatalf("GetByBlockIDs expected 1, got %d", len(byBlocks))
	}

	if err := assignmentRepo.Delete(ctx, assignment.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
}

// TestPersonRepository_ListActiveReturnsAllCreated verifies that every
// person created is returned by ListActive.
func TestPersonRepository_ListActiveReturnsAllCreated(t *testing.T) {
	ctx := context.Background()
	helper := NewPostgresTestHelper(ctx, t)
	defer helper.Close(t)

	repo := NewPersonRepository(helper.DB())

	for i := 0; i < 5; i++ {
		person := &entity.Person{
			Role:      entity.RoleTrainee,
			PGYLevel:  1,
			Name:      fmt.Sprintf("Person %d", i),
			Active:    true,
			CreatedAt: time.Now(),
			UpdatedAt: time.Now(),
		}
		if err := repo.Create(ctx, person); err != nil {
			t.Fatalf("Failed to create person %d: %v", i, err)
		}
	}

	active, err := repo.ListActive(ctx)
	if err != nil {
		t.Fatalf("ListActive failed: %v", err)
	}
	if len(active) != 5 {
		t.Fatalf("expected 5 active persons, got %d", len(active))
	}
}
