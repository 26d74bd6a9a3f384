package trading

import (
	"context"
	"time"
)

// recover tries to leave a known stuck screen after a failed cycle.
func (r *Rolling) recover() {
	switch {
	case r.det.InEquipmentScreen():
		r.log.Warn().Msg("equipment screen open, backing out")
		r.refresh()
	case r.det.InLobby():
		r.log.Warn().Msg("back in the lobby, re-entering")
		r.enterActionWindow(r.det.ReadyShortcut())
	case r.det.LoadoutKeyIgnored():
		r.log.Warn().Msg("loadout key ignored, re-entering")
		r.refresh()
		r.pacer.Sleep("stuck_recovery")
		r.enterActionWindow(false)
	}
}

// enterActionWindow walks from the lobby to the operation screen. The
// shortcut skips preparing equipment and the map choice.
func (r *Rolling) enterActionWindow(shortcut bool) {
	l := r.deps.Layout.Lobby
	x := r.deps.Executor
	if !shortcut {
		x.Click(l.PrepareEquipment)
		r.pacer.Sleep("before_select_zero_dam")
		if !r.det.MapSelected() {
			x.Click(l.ZeroDam)
		}
		r.pacer.Sleep("before_start_action")
	}
	x.Click(l.StartAction)
}

// switchToBattlefield hops to the other game mode and back, which clears
// a market stall that builds up over long sessions.
func (r *Rolling) switchToBattlefield() {
	r.log.Info().Int("loop", r.loop).Msg("switching mode to clear stall")
	l := r.deps.Layout.Lobby
	x := r.deps.Executor

	r.refresh()
	r.pacer.Sleep("before_open_mode_select_menu_tarkov_mode")
	r.refresh()
	r.pacer.Sleep("before_select_mode")
	x.Click(l.BattlefieldMode)
	r.pacer.Sleep("before_open_mode_select_menu_battlefield_mode")
	for i := 0; i < 3; i++ {
		if err := x.KeyTap("space"); err != nil {
			r.log.Warn().Err(err).Msg("confirm mode")
		}
		r.pacer.Sleep("mode_confirm")
	}
	r.refresh()
	r.pacer.Sleep("before_select_mode")
	x.Click(l.TarkovMode)
	r.pacer.Sleep("before_select_map")
	r.enterActionWindow(false)
}

// gameGone checks the client process after repeated failures. A client that
// restarted and sits on its home page is walked back to the operation screen.
func (r *Rolling) gameGone(ctx context.Context) bool {
	if r.procs == nil {
		return false
	}
	running, err := r.procs.Running(ctx)
	if err != nil {
		r.log.Warn().Err(err).Msg("process check failed")
		return false
	}
	if !running {
		return true
	}
	if r.det.GameStarted() {
		r.resumeFromHome()
	}
	return false
}

func (r *Rolling) resumeFromHome() {
	r.log.Warn().Msg("client is on its home page, entering the game")
	x := r.deps.Executor
	x.Click(r.deps.Layout.Launcher.EnterGame)
	r.pacer.Pause(time.Second)
	for i := 0; i < 3; i++ {
		if err := x.KeyTap("space"); err != nil {
			r.log.Warn().Err(err).Msg("skip intro")
		}
		r.pacer.Pause(time.Second)
	}
	if err := x.KeyTap("tab"); err != nil {
		r.log.Warn().Err(err).Msg("open lobby")
	}
	r.pacer.Pause(time.Second)
	r.enterActionWindow(false)
}
