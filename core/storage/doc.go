// Package storage provides the object storage client used for journal
// archives.
//
// Journal retention pruning serializes expired entries to JSON and uploads
// them here before deleting the rows, so the audit trail survives pruning.
//
// The Client interface wraps the Minio SDK with only the operations the
// archive needs, which keeps tests to a small fake.
package storage
