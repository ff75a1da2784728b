package importer

import (
	"fmt"

	"github.com/atelierops/api/internal/domain"
)

// contactIndex maps a folded name to the folded phones seen with it, and a
// folded phone to the folded names seen with it.
type contactIndex struct {
	phonesByName map[string]map[string]struct{}
	namesByPhone map[string]map[string]struct{}
}

func (ix contactIndex) add(c domain.Client) {
	name, phone := fold(c.Name), fold(c.Phone)
	if name != "" {
		addToSet(ix.phonesByName, name, phone)
	}
	if phone != "" {
		addToSet(ix.namesByPhone, phone, name)
	}
}

func addToSet(m map[string]map[string]struct{}, key, value string) {
	set, ok := m[key]
	if !ok {
		set = map[string]struct{}{}
		m[key] = set
	}
	set[value] = struct{}{}
}

// filterDuplicateContacts drops new client candidates whose name alone or
// phone alone already belongs to a different client, either in the snapshot
// or earlier in the candidate list. Each dropped candidate gets a message.
func filterDuplicateContacts(candidates []domain.Client, snap *Snapshot) ([]domain.Client, []string) {
	ix := contactIndex{
		phonesByName: map[string]map[string]struct{}{},
		namesByPhone: map[string]map[string]struct{}{},
	}
	for _, c := range snap.clients {
		ix.add(c)
	}

	kept := make([]domain.Client, 0, len(candidates))
	var messages []string
	for _, c := range candidates {
		name, phone := fold(c.Name), fold(c.Phone)
		if phones, ok := ix.phonesByName[name]; ok {
			if _, same := phones[phone]; !same {
				messages = append(messages, fmt.Sprintf("client %q (%s) not created: name already used with another phone", c.Name, c.Phone))
				continue
			}
		}
		if phone != "" {
			if names, ok := ix.namesByPhone[phone]; ok {
				if _, same := names[name]; !same {
					messages = append(messages, fmt.Sprintf("client %q (%s) not created: phone already used by another client", c.Name, c.Phone))
					continue
				}
			}
		}
		kept = append(kept, c)
		ix.add(c)
	}
	return kept, messages
}
