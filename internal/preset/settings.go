package preset

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/Morzio/Hair-Factory/internal/hash"
	"github.com/Morzio/Hair-Factory/internal/store"
)

// SaveSettings stores a physics settings mapping of type t (cloth, soft
// body or collision).
func (p *Processor) SaveSettings(t Type, settings map[string]any, name string) (*SaveResult, error) {
	if !t.IsSettings() {
		return nil, fmt.Errorf("%s is not a settings type", t)
	}
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	if len(settings) == 0 {
		return nil, fmt.Errorf("%s settings are empty", t)
	}
	tbl, err := t.Table()
	if err != nil {
		return nil, err
	}
	payload, id, err := canonical(settings)
	if err != nil {
		return nil, err
	}
	return p.putTop(t, tbl, store.NewRecord{ID: id, Name: name, Kind: string(t), Payload: payload}, false, nil)
}

// putTop creates rec in tbl as a top-level preset. Without autoName the
// top-level policy applies: a stored id is a no-op and a taken name is an
// error. With autoName a taken name is suffixed instead. also runs after
// the record was created, inside the same transaction.
func (p *Processor) putTop(t Type, tbl store.Table, rec store.NewRecord, autoName bool, also func(tx *Processor, name string) error) (*SaveResult, error) {
	res := &SaveResult{Type: t, ID: rec.ID, Name: rec.Name}
	err := p.update(func(tx *Processor) error {
		var err error
		if autoName {
			res.Created, res.Name, err = tx.st.PutIfAbsent(tbl, rec)
		} else {
			existing, exists, cerr := tx.checkTopName(tbl, rec.ID, rec.Name)
			if cerr != nil {
				return cerr
			}
			if exists {
				res.Name = existing
				return nil
			}
			res.Created, res.Name, err = tx.st.PutNamed(tbl, rec)
		}
		if err != nil || !res.Created || also == nil {
			return err
		}
		return also(tx, res.Name)
	})
	if err != nil {
		return nil, err
	}
	if res.Created {
		p.log.Info("preset saved", zap.String("type", string(t)), zap.String("name", res.Name), zap.String("id", res.ID.Short()))
	}
	return res, nil
}

// LoadSettings returns the stored settings id of type t and its name.
func (p *Processor) LoadSettings(t Type, id hash.Digest) (map[string]any, string, error) {
	if !t.IsSettings() {
		return nil, "", fmt.Errorf("%s is not a settings type", t)
	}
	tbl, err := t.Table()
	if err != nil {
		return nil, "", err
	}
	rec, err := p.st.Get(tbl, id)
	if err != nil {
		return nil, "", err
	}
	v, err := rec.Value()
	if err != nil {
		return nil, "", err
	}
	m, ok := hash.Native(v).(map[string]any)
	if !ok {
		return nil, "", fmt.Errorf("%s %s: expected mapping, got %T", t, id.Short(), v)
	}
	return m, rec.Name, nil
}
