package db

import (
	"fmt"

	"github.com/kailas-cloud/nearby/internal/domain/provider"
)

// ChangeOp is the row operation carried by a unit of work.
type ChangeOp int

// Row operations.
const (
	// OpNone only advances the sequence (tombstone for unknown providers).
	OpNone ChangeOp = iota
	OpAdd
	OpUpdate
	OpDelete
)

func (o ChangeOp) String() string {
	switch o {
	case OpAdd:
		return "add"
	case OpUpdate:
		return "update"
	case OpDelete:
		return "delete"
	default:
		return "none"
	}
}

// Changes is the unit of work for one synchronization step of one provider.
// It carries at most one row operation and the event sequence that produced it.
type Changes struct {
	providerID string
	sequence   int64
	op         ChangeOp
	row        provider.SearchableProvider
	rowID      string
}

// NewChanges starts a unit of work for providerID at sequence.
func NewChanges(providerID string, sequence int64) *Changes {
	return &Changes{providerID: providerID, sequence: sequence}
}

// Add records creation of p.
func (c *Changes) Add(p provider.SearchableProvider) error {
	if err := c.record(OpAdd, p.ProviderID()); err != nil {
		return err
	}
	c.row, c.rowID = p, p.ID()
	return nil
}

// Update records replacement of p.
func (c *Changes) Update(p provider.SearchableProvider) error {
	if err := c.record(OpUpdate, p.ProviderID()); err != nil {
		return err
	}
	c.row, c.rowID = p, p.ID()
	return nil
}

// Delete records removal of the row with the given row id.
func (c *Changes) Delete(rowID string) error {
	if err := c.record(OpDelete, c.providerID); err != nil {
		return err
	}
	c.rowID = rowID
	return nil
}

func (c *Changes) record(op ChangeOp, providerID string) error {
	if c.op != OpNone {
		return fmt.Errorf("unit of work already holds %s", c.op)
	}
	if providerID != c.providerID {
		return fmt.Errorf("row belongs to %q, unit of work to %q", providerID, c.providerID)
	}
	c.op = op
	return nil
}

// ProviderID returns the provider this unit of work belongs to.
func (c *Changes) ProviderID() string { return c.providerID }

// Sequence returns the event sequence committed with the changes.
func (c *Changes) Sequence() int64 { return c.sequence }

// Op returns the recorded row operation.
func (c *Changes) Op() ChangeOp { return c.op }

// Row returns the row for OpAdd and OpUpdate.
func (c *Changes) Row() provider.SearchableProvider { return c.row }

// RowID returns the affected row id, empty for OpNone.
func (c *Changes) RowID() string { return c.rowID }
