package importer

import "github.com/atelierops/api/internal/domain"

type DiffOptions struct {
	// CollapseDuplicates schedules only the first row of a repeated key.
	CollapseDuplicates bool
	Currency           string
}

// EntityDiff holds the entities the rows reference that the snapshot lacks,
// in first-seen row order.
type EntityDiff struct {
	Clients  []domain.Client
	Services []domain.Service
	Workers  []domain.Worker
}

func (d EntityDiff) Empty() bool {
	return len(d.Clients) == 0 && len(d.Services) == 0 && len(d.Workers) == 0
}

// ComputeDiff matches every row's client, services and workers against the
// snapshot on their business keys. Rows without an order number are skipped
// later, so nothing is scheduled for them. It does no I/O.
func ComputeDiff(records []Record, snap *Snapshot, opts DiffOptions) EntityDiff {
	var (
		diff         EntityDiff
		seenClients  = map[ClientKey]struct{}{}
		seenServices = map[ServiceKey]struct{}{}
		seenWorkers  = map[string]struct{}{}
	)

	for _, rec := range records {
		if rec.OrderNumber == "" {
			continue
		}
		if rec.ClientName != "" {
			key := NewClientKey(rec.ClientName, rec.ClientPhone)
			if _, ok := snap.Client(key); !ok && firstSighting(seenClients, key, opts.CollapseDuplicates) {
				diff.Clients = append(diff.Clients, domain.Client{Name: rec.ClientName, Phone: rec.ClientPhone})
			}
		}

		entries, _ := ParseServiceText(rec.Services, opts.Currency)
		for _, entry := range entries {
			key := NewServiceKey(entry.Name, entry.UnitPrice)
			if _, ok := snap.Service(key); !ok && firstSighting(seenServices, key, opts.CollapseDuplicates) {
				diff.Services = append(diff.Services, domain.Service{Name: entry.Name, UnitCost: entry.UnitPrice})
			}
		}

		for _, name := range []string{rec.TopWorker, rec.BottomWorker} {
			if name == "" {
				continue
			}
			key := WorkerKey(name)
			if _, ok := snap.Worker(key); !ok && firstSighting(seenWorkers, key, opts.CollapseDuplicates) {
				diff.Workers = append(diff.Workers, domain.Worker{Name: name})
			}
		}
	}
	return diff
}

func firstSighting[K comparable](seen map[K]struct{}, key K, collapse bool) bool {
	if !collapse {
		return true
	}
	if _, ok := seen[key]; ok {
		return false
	}
	seen[key] = struct{}{}
	return true
}
