package api

import (
	"fmt"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/vpbank/olt_collector/pkg/oltcollector/store"
)

// ─────────────────────────────────────────────────────────────────────────────
// JSON
// ─────────────────────────────────────────────────────────────────────────────

func (s *Server) listOlts(c *fiber.Ctx) error {
	olts, err := s.store.Olts(c.UserContext())
	if err != nil {
		return err
	}
	if olts == nil {
		olts = []store.OltSnapshot{}
	}
	return c.JSON(olts)
}

func (s *Server) getOlt(c *fiber.Ctx) error {
	snap, err := s.store.Olt(c.UserContext(), c.Params("name"))
	if err != nil {
		return err
	}
	return c.JSON(snap)
}

// getReport answers with the bare {"olt":…,"onu":[…]} document of the last
// good poll.
func (s *Server) getReport(c *fiber.Ctx) error {
	rep, err := s.store.Report(c.UserContext(), c.Params("name"))
	if err != nil {
		return err
	}
	return c.JSON(rep)
}

func (s *Server) getInterfaces(c *fiber.Ctx) error {
	rows, err := s.store.Interfaces(c.UserContext(), c.Params("name"))
	if err != nil {
		return err
	}
	return c.JSON(rows)
}

// getOnus accepts ?online=true|false.
func (s *Server) getOnus(c *fiber.Ctx) error {
	var f store.OnuFilter
	if raw := c.Query("online"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("invalid online filter %q", raw))
		}
		f.Online = &v
	}
	rows, err := s.store.Onus(c.UserContext(), c.Params("name"), f)
	if err != nil {
		return err
	}
	return c.JSON(rows)
}

func (s *Server) getHistory(c *fiber.Ctx) error {
	limit, err := queryLimit(c)
	if err != nil {
		return err
	}
	rows, err := s.store.History(c.UserContext(), c.Params("name"), limit)
	if err != nil {
		return err
	}
	return c.JSON(rows)
}

func (s *Server) getOnu(c *fiber.Ctx) error {
	row, err := s.store.Onu(c.UserContext(), c.Params("mac"))
	if err != nil {
		return err
	}
	return c.JSON(row)
}

func (s *Server) getTransitions(c *fiber.Ctx) error {
	limit, err := queryLimit(c)
	if err != nil {
		return err
	}
	if _, err := s.store.Onu(c.UserContext(), c.Params("mac")); err != nil {
		return err
	}
	rows, err := s.store.Transitions(c.UserContext(), c.Params("mac"), limit)
	if err != nil {
		return err
	}
	return c.JSON(rows)
}

// triggerPoll queues an immediate poll: 202 when queued, 429 while the
// device is cooling down or the queue is full, 404 for unknown devices.
func (s *Server) triggerPoll(c *fiber.Ctx) error {
	if s.trigger == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "polling is not enabled")
	}
	name := c.Params("name")
	if _, err := s.store.Olt(c.UserContext(), name); err != nil {
		return err
	}
	if !s.trigger.Trigger(name) {
		return fiber.NewError(fiber.StatusTooManyRequests, fmt.Sprintf("poll of %s not queued", name))
	}
	s.logger.Info("api: poll triggered", "device", name)
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"device": name, "queued": true})
}

// ─────────────────────────────────────────────────────────────────────────────
// Dashboard
// ─────────────────────────────────────────────────────────────────────────────

func (s *Server) dashboard(c *fiber.Ctx) error {
	olts, err := s.store.Olts(c.UserContext())
	if err != nil {
		return err
	}
	return c.Render("index", fiber.Map{
		"Olts": olts,
	})
}

func (s *Server) oltPage(c *fiber.Ctx) error {
	name := c.Params("name")
	snap, err := s.store.Olt(c.UserContext(), name)
	if err != nil {
		return err
	}
	ifaces, err := s.store.Interfaces(c.UserContext(), name)
	if err != nil {
		return err
	}
	onus, err := s.store.Onus(c.UserContext(), name, store.OnuFilter{})
	if err != nil {
		return err
	}
	return c.Render("olt", fiber.Map{
		"Olt":        snap,
		"Interfaces": ifaces,
		"Onus":       onus,
	})
}
