// Package core defines the shared language of the leapmetrics system.
//
// This package contains:
//   - Semantic entities (Model, Dimension, Measure, Join)
//   - Governance entities (Rule, Classification)
//   - The compile contract (CompileRequest, Plan)
//   - The error taxonomy shared by every layer
//   - Service interfaces (Adapter) and configuration types (DatabaseConfig)
//
// The Golden Rule: pkg/core imports ONLY stdlib.
// All other packages depend on core, not the reverse.
package core
