// Package sqldocs exposes the registry SQL schema directly from the docs tree.
package sqldocs

import _ "embed"

// Postgres contains the registry DDL applied by the postgres store.
//
//go:embed postgres.sql
var Postgres string
