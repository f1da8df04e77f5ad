package arbitration

// Memo remembers the last inconclusive run so the next turn does not re-ask
// the model the same question over the same evidence.
type Memo struct {
	Fingerprint string `json:"fingerprint,omitempty"`
	Utterance   string `json:"utterance,omitempty"`
	Turn        int    `json:"turn,omitempty"`
}

// Blocks reports whether a run for (fingerprint, utterance) on turn would
// repeat the previous turn's inconclusive run.
func (m Memo) Blocks(fingerprint, utterance string, turn int) bool {
	return m.Fingerprint != "" &&
		m.Fingerprint == fingerprint &&
		m.Utterance == utterance &&
		turn-m.Turn == 1
}

func (m *Memo) Record(fingerprint, utterance string, turn int) {
	m.Fingerprint = fingerprint
	m.Utterance = utterance
	m.Turn = turn
}

func (m *Memo) Clear() {
	*m = Memo{}
}
