package hr

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Seed returns the built-in initial document: one verified admin account and
// two departments.
func Seed(now time.Time) *Data {
	return &Data{
		Accounts: []*Account{
			{
				Meta:      Meta{ID: 1, CreatedAt: now},
				FirstName: "Admin",
				LastName:  "User",
				Email:     "admin@example.com",
				Password:  "Password123!",
				Role:      RoleAdmin,
				Verified:  true,
			},
		},
		Departments: []*Department{
			{Meta: Meta{ID: 1, CreatedAt: now}, Name: "Engineering", Description: "Software development team"},
			{Meta: Meta{ID: 2, CreatedAt: now}, Name: "HR", Description: "Human Resources"},
		},
		Employees: []*Employee{},
		Requests:  []*Request{},
	}
}

// ParseSeed decodes a YAML document with the shape of Data. Records without
// an id get the next free one and records without a creation time get now.
func ParseSeed(b []byte, now time.Time) (*Data, error) {
	d := &Data{}
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(d); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode seed: %w", err)
	}
	d.normalize()
	fillMeta(d.Accounts, now)
	fillMeta(d.Departments, now)
	fillMeta(d.Employees, now)
	fillMeta(d.Requests, now)
	for _, r := range d.Requests {
		if r.Status == "" {
			r.Status = StatusPending
		}
		if r.Date.IsZero() {
			r.Date = now
		}
	}
	for _, a := range d.Accounts {
		if a.Role == "" {
			a.Role = RoleUser
		}
		if !a.Role.Valid() {
			return nil, fmt.Errorf("seed account %q: invalid role %q", a.Email, a.Role)
		}
	}
	return d, nil
}

// LoadSeedFile reads a YAML seed document from path.
func LoadSeedFile(path string, now time.Time) (*Data, error) {
	b, err := os.ReadFile(path) //nolint:gosec // G304: path comes from configuration
	if err != nil {
		return nil, fmt.Errorf("read seed: %w", err)
	}
	return ParseSeed(b, now)
}

func fillMeta[T Record[T]](rows []T, now time.Time) {
	next := nextID(rows)
	for _, r := range rows {
		m := r.meta()
		if m.ID == 0 {
			m.ID = next
			next++
		}
		if m.CreatedAt.IsZero() {
			m.CreatedAt = now
		}
	}
}
