// Package testutil provides shared fixtures for ipogen tests.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/nomagicln/ipogen/pkg/coverage"
	"github.com/nomagicln/ipogen/pkg/factor"
	"github.com/nomagicln/ipogen/pkg/tuple"
)

// TempFile writes content to name inside a fresh temp directory and returns its path.
func TempFile(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	return path
}

// TempModelFile writes a model document to a temp file.
func TempModelFile(t *testing.T, model string) string {
	t.Helper()
	return TempFile(t, "model.yaml", model)
}

// TempOpenAPISpec writes an OpenAPI document to a temp file.
func TempOpenAPISpec(t *testing.T, spec string) string {
	t.Helper()
	return TempFile(t, "spec.yaml", spec)
}

// Uncovered returns the strength-way combinations of fs that no row contains.
func Uncovered(fs *factor.Factors, strength int, rows []*tuple.Tuple) []*tuple.Tuple {
	all := coverage.All(fs, strength)
	for _, row := range rows {
		all.Cover(row)
	}
	return all.All()
}

// AssertCovered fails the test when some combination is not covered.
func AssertCovered(t *testing.T, fs *factor.Factors, strength int, rows []*tuple.Tuple) {
	t.Helper()
	if missing := Uncovered(fs, strength, rows); len(missing) > 0 {
		t.Errorf("%d combinations not covered, first: %s", len(missing), missing[0])
	}
}

// CheckoutModel is a small constrained model.
const CheckoutModel = `
name: checkout
strength: 2
factors:
  - name: browser
    levels: [chrome, firefox, safari]
  - name: payment
    levels: [card, paypal, invoice]
  - name: member
    levels: [true, false]
  - name: items
    levels: [1, 10]
constraints:
  - Implies(payment == "invoice", member)
  - Implies(browser == "safari", payment != "paypal")
`

// MinimalModel is the smallest model ipo2 accepts.
const MinimalModel = `
factors:
  - name: A
    levels: [0, 1]
  - name: B
    levels: [0, 1]
`

// PetstoreOpenAPISpec is an OpenAPI document with enum and boolean inputs.
const PetstoreOpenAPISpec = `
openapi: "3.0.0"
info:
  title: Petstore API
  version: "1.0.0"
paths:
  /pet:
    parameters:
      - name: dryRun
        in: query
        schema:
          type: boolean
    post:
      operationId: addPet
      summary: Add a new pet to the store
      parameters:
        - name: status
          in: query
          schema:
            type: string
            enum: [available, pending]
      requestBody:
        required: true
        content:
          application/json:
            schema:
              $ref: '#/components/schemas/Pet'
      responses:
        "200":
          description: successful operation
  /pet/findByStatus:
    get:
      operationId: findPetsByStatus
      summary: Find pets by status
      parameters:
        - name: status
          in: query
          schema:
            type: string
            enum: [available, pending, sold]
        - name: limit
          in: query
          schema:
            type: integer
      responses:
        "200":
          description: successful operation
  /pet/{petId}:
    get:
      operationId: getPetById
      summary: Find pet by ID
      parameters:
        - name: petId
          in: path
          required: true
          schema:
            type: integer
            format: int64
      responses:
        "200":
          description: successful operation
components:
  schemas:
    Pet:
      type: object
      required:
        - name
      properties:
        name:
          type: string
        status:
          type: string
          enum:
            - available
            - pending
            - sold
        vaccinated:
          type: boolean
`
