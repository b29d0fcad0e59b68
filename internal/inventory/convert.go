package inventory

import "fmt"

// Transformer translates masked DB2 text into the target SQL dialect.
type Transformer interface {
	Transform(sql string) (string, error)
}

// Convert translates the object's masked text with t and keeps the result.
// Once a conversion has succeeded, later calls do nothing.
func (o *ScriptObject) Convert(t Transformer) error {
	if o.converted {
		return nil
	}
	out, err := t.Transform(o.SQL)
	if err != nil {
		return fmt.Errorf("failed to convert %s: %w", o.Key(), err)
	}
	o.ConvertedSQL = out
	o.converted = true
	return nil
}
