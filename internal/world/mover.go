package world

// Mover is a straight-line stand-in for an engine navigation agent. It owns a
// pointer to the pose it drives and advances it toward the destination at
// Speed units per second when Advance is called by the host.
type Mover struct {
	pose        *Pose
	Speed       float64
	TurnRate    float64 // Degrees per second; 0 snaps heading to the path
	destination Vec3
	hasPath     bool
	stopped     bool
	disabled    bool
}

// NewMover creates a mover bound to pose.
func NewMover(pose *Pose, speed, turnRate float64) *Mover {
	return &Mover{pose: pose, Speed: speed, TurnRate: turnRate, stopped: true}
}

// MoveTo sets a new destination and resumes movement.
func (m *Mover) MoveTo(dest Vec3) {
	if m.disabled {
		return
	}
	m.destination = dest
	m.hasPath = true
	m.stopped = false
}

// Stop halts movement and clears the path.
func (m *Mover) Stop() {
	m.stopped = true
	m.hasPath = false
}

// Disable permanently turns the mover off.
func (m *Mover) Disable() {
	m.Stop()
	m.disabled = true
}

// Disabled reports whether Disable has been called.
func (m *Mover) Disabled() bool { return m.disabled }

// HasPath reports whether a destination is pending.
func (m *Mover) HasPath() bool { return m.hasPath && !m.stopped }

// Destination returns the current destination.
func (m *Mover) Destination() Vec3 { return m.destination }

// RemainingDistance is the ground-plane distance left to the destination, or
// zero with no path.
func (m *Mover) RemainingDistance() float64 {
	if !m.hasPath {
		return 0
	}
	return m.destination.Sub(m.pose.Position).Flat().Len()
}

// IsArrived reports whether the remaining distance is within threshold.
func (m *Mover) IsArrived(threshold float64) bool {
	return m.RemainingDistance() <= threshold
}

// Advance moves the pose by up to Speed*dt along the straight line to the
// destination.
func (m *Mover) Advance(dt float64) {
	if m.disabled || m.stopped || !m.hasPath || dt <= 0 {
		return
	}
	delta := m.destination.Sub(m.pose.Position).Flat()
	dist := delta.Len()
	if dist < 1e-6 {
		return
	}
	step := m.Speed * dt
	if step >= dist {
		m.pose.Position.X = m.destination.X
		m.pose.Position.Z = m.destination.Z
	} else {
		m.pose.Position = m.pose.Position.Add(delta.Scale(step / dist))
	}
	want := YawTowards(delta, m.pose.Yaw)
	if m.TurnRate <= 0 {
		m.pose.Yaw = want
	} else {
		m.pose.Yaw = RotateTowards(m.pose.Yaw, want, m.TurnRate*dt)
	}
}
