package session

import (
	"github.com/teslashibe/go-companion/pkg/realtime"
	"github.com/teslashibe/go-companion/pkg/transcript"
)

// handleStatus follows transport status reports. Only a drop of a live
// session changes orchestrator state; connect transitions are driven by
// Connect itself. It runs on transport goroutines and never calls back
// into the transport.
func (o *Orchestrator) handleStatus(s realtime.Status) {
	if s != realtime.StatusDisconnected {
		return
	}

	o.mu.Lock()
	if o.status != realtime.StatusConnected {
		o.mu.Unlock()
		return
	}
	o.gen++
	o.status = realtime.StatusDisconnected
	o.listening = false
	o.mu.Unlock()

	o.logger.Warn("realtime session dropped")
	o.stopMeter()
	o.changed()
}

func (o *Orchestrator) handleEvent(e realtime.Event) {
	switch e.Kind {
	case realtime.EventItemCreated:
		role := transcript.Role(e.Role)
		if e.ItemID == "" || (role != transcript.RoleUser && role != transcript.RoleAssistant) {
			return
		}
		if !o.transcript.Has(e.ItemID) {
			o.transcript.AddMessage(e.ItemID, role, e.Text, false)
		}

	case realtime.EventUserTranscript:
		if o.transcript.Has(e.ItemID) {
			o.transcript.UpdateMessage(e.ItemID, e.Text, false)
		} else {
			o.transcript.AddMessage(e.ItemID, transcript.RoleUser, e.Text, false)
		}
		o.transcript.MarkDone(e.ItemID)

	case realtime.EventAssistantDelta:
		if !o.transcript.Has(e.ItemID) {
			o.transcript.AddMessage(e.ItemID, transcript.RoleAssistant, "", false)
		}
		o.transcript.UpdateMessage(e.ItemID, e.Text, true)

	case realtime.EventAssistantDone:
		switch {
		case !o.transcript.Has(e.ItemID):
			o.transcript.AddMessage(e.ItemID, transcript.RoleAssistant, e.Text, false)
		case e.Text != "":
			o.transcript.UpdateMessage(e.ItemID, e.Text, false)
		}
		o.transcript.MarkDone(e.ItemID)

	case realtime.EventHandoff:
		o.handoff(e.Agent)

	case realtime.EventGuardrailTripped:
		data := map[string]any{}
		if g := e.Guardrail; g != nil {
			data["name"] = g.Name
			data["category"] = g.Category
			data["rationale"] = g.Rationale
		}
		o.transcript.AddBreadcrumb("Output Guardrail Tripped", data)

	case realtime.EventError:
		if e.Err != nil {
			o.logger.Warn("realtime error", "error", e.Err)
			o.reportError(e.Err)
		}
	}
}

// handoff records the new active agent and, while connected, leaves an
// "Agent: <name>" breadcrumb carrying the agent's configuration.
func (o *Orchestrator) handoff(name string) {
	o.mu.Lock()
	o.selectedAgent = name
	connected := o.status == realtime.StatusConnected
	agent, found := o.agents.Find(name)
	o.mu.Unlock()

	o.logger.Info("agent handoff", "agent", name)
	if connected {
		var data map[string]any
		if found {
			data = map[string]any{
				"name":         agent.Name,
				"instructions": agent.Instructions,
				"handoffs":     agent.Handoffs,
			}
		}
		o.transcript.AddBreadcrumb("Agent: "+name, data)
	}
	o.changed()
}
