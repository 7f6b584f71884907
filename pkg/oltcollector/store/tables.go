package store

import "time"

// OltSnapshot is the latest known state of one OLT. Report holds the JSON of
// the last successful or degraded models.DeviceReport; a failed poll updates
// only the status columns.
type OltSnapshot struct {
	ID          uint      `gorm:"primaryKey" json:"-"`
	Name        string    `gorm:"uniqueIndex;not null" json:"name"`
	DeviceID    int       `json:"id"`
	IP          string    `json:"ip"`
	Port        int       `json:"port"`
	Model       string    `json:"model"`
	Version     string    `json:"version"`
	Uptime      string    `json:"uptime"`
	Status      int       `json:"status"`
	PollStatus  string    `json:"poll_status"`
	Error       string    `json:"error,omitempty"`
	Interfaces  int       `json:"interfaces"`
	Onus        int       `json:"onus"`
	OnlineOnus  int       `json:"online_onus"`
	Report      []byte    `json:"-"`
	CollectedAt time.Time `json:"collected_at"`
	ReportedAt  time.Time `json:"reported_at"`
}

// InterfaceState is one OLT interface row from the last report.
type InterfaceState struct {
	ID           uint      `gorm:"primaryKey" json:"-"`
	OltName      string    `gorm:"index:idx_iface_olt,priority:1;not null" json:"olt"`
	Index        int       `gorm:"column:if_index;index:idx_iface_olt,priority:2" json:"index"`
	Name         string    `json:"iface"`
	HasSfp       bool      `json:"sfp"`
	TemperatureC float64   `json:"temperature"`
	SignalDbm    float64   `json:"signal"`
	OperState    string    `json:"operState"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// OnuState is the last known state of one ONU, keyed by MAC. An ONU that
// moves between OLTs keeps its row.
type OnuState struct {
	ID          uint       `gorm:"primaryKey" json:"-"`
	MAC         string     `gorm:"uniqueIndex;not null" json:"mac"`
	OltName     string     `gorm:"index" json:"olt"`
	Index       string     `gorm:"column:onu_index" json:"index"`
	Ifname      string     `json:"ifname,omitempty"`
	DeregStatus string     `json:"status,omitempty"`
	Distance    *float64   `json:"distance,omitempty"`
	Online      *bool      `json:"online,omitempty"`
	SignalRx    string     `json:"signal_rx,omitempty"`
	FirstSeen   time.Time  `json:"first_seen"`
	LastSeen    time.Time  `json:"last_seen"`
	LastOnline  *time.Time `json:"last_online,omitempty"`
	LastChange  *time.Time `json:"last_change,omitempty"`
}

// OnuTransition records an ONU going online or offline between two polls.
type OnuTransition struct {
	ID      uint      `gorm:"primaryKey" json:"-"`
	MAC     string    `gorm:"index" json:"mac"`
	OltName string    `json:"olt"`
	Online  bool      `json:"online"`
	At      time.Time `json:"at"`
}

// PollRecord is one row of an OLT's poll history.
type PollRecord struct {
	ID          uint      `gorm:"primaryKey" json:"-"`
	OltName     string    `gorm:"index" json:"olt"`
	PollStatus  string    `json:"poll_status"`
	DurationMs  int64     `json:"poll_duration_ms"`
	Onus        int       `json:"onus"`
	OnlineOnus  int       `json:"online_onus"`
	Error       string    `json:"error,omitempty"`
	CollectedAt time.Time `json:"collected_at"`
}

func tables() []interface{} {
	return []interface{}{
		&OltSnapshot{},
		&InterfaceState{},
		&OnuState{},
		&OnuTransition{},
		&PollRecord{},
	}
}
