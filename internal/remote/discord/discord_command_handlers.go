package discord

import (
	"fmt"
	"slices"
	"strings"

	"github.com/bwmarrin/discordgo"
)

func (b *Bot) supervisorExists(supervisor string) bool {
	supervisors := b.manager.AvailableSupervisors()
	return slices.Contains(supervisors, supervisor)
}

func (b *Bot) handleStartRequest(s *discordgo.Session, m *discordgo.MessageCreate) {
	words := strings.Fields(m.Content)

	if len(words) < 2 {
		s.ChannelMessageSend(m.ChannelID, "Usage: !start <profile1> [profile2] ...")
		return
	}

	for _, supervisor := range words[1:] {
		if !b.supervisorExists(supervisor) {
			s.ChannelMessageSend(m.ChannelID, fmt.Sprintf("Profile '%s' not found.", supervisor))
			continue
		}

		if b.manager.Running(supervisor) {
			s.ChannelMessageSend(m.ChannelID, fmt.Sprintf("Profile '%s' is already running.", supervisor))
			continue
		}

		name := supervisor
		go b.manager.Start(name)
		s.ChannelMessageSend(m.ChannelID, fmt.Sprintf("Profile '%s' has been started.", supervisor))
	}
}

func (b *Bot) handleStopRequest(s *discordgo.Session, m *discordgo.MessageCreate) {
	words := strings.Fields(m.Content)

	if len(words) < 2 {
		s.ChannelMessageSend(m.ChannelID, "Usage: !stop <profile1> [profile2] ...")
		return
	}

	for _, supervisor := range words[1:] {
		if !b.supervisorExists(supervisor) {
			s.ChannelMessageSend(m.ChannelID, fmt.Sprintf("Profile '%s' not found.", supervisor))
			continue
		}

		if !b.manager.Running(supervisor) {
			s.ChannelMessageSend(m.ChannelID, fmt.Sprintf("Profile '%s' is not running.", supervisor))
			continue
		}

		b.manager.Stop(supervisor)
		s.ChannelMessageSend(m.ChannelID, fmt.Sprintf("Profile '%s' has been stopped.", supervisor))
	}
}

func (b *Bot) handleStatusRequest(s *discordgo.Session, m *discordgo.MessageCreate) {
	words := strings.Fields(m.Content)

	if len(words) < 2 {
		s.ChannelMessageSend(m.ChannelID, "Usage: !status <profile1> [profile2] ...")
		return
	}

	for _, supervisor := range words[1:] {
		if !b.supervisorExists(supervisor) {
			s.ChannelMessageSend(m.ChannelID, fmt.Sprintf("Profile '%s' not found.", supervisor))
			continue
		}

		st := b.manager.Status(supervisor)
		line := fmt.Sprintf("Profile '%s': %s", supervisor, st.State)
		if st.Identity != "" {
			line += fmt.Sprintf(" as %s", st.Identity)
		}
		if st.LastError != "" {
			line += fmt.Sprintf(" (last error: %s)", st.LastError)
		}
		s.ChannelMessageSend(m.ChannelID, line)
	}
}

func (b *Bot) handleListRequest(s *discordgo.Session, m *discordgo.MessageCreate) {
	supervisors := b.manager.AvailableSupervisors()
	if len(supervisors) == 0 {
		s.ChannelMessageSend(m.ChannelID, "No profiles configured.")
		return
	}

	var sb strings.Builder
	sb.WriteString("Configured profiles:\n")
	for _, name := range supervisors {
		state := "stopped"
		if b.manager.Running(name) {
			state = string(b.manager.Status(name).State)
		}
		sb.WriteString(fmt.Sprintf("- %s (%s)\n", name, state))
	}
	s.ChannelMessageSend(m.ChannelID, sb.String())
}

func (b *Bot) handleHelpRequest(s *discordgo.Session, m *discordgo.MessageCreate) {
	help := "Available commands:\n" +
		"`!start <profile> ...` start one or more profiles\n" +
		"`!stop <profile> ...` stop one or more profiles\n" +
		"`!status <profile> ...` show connection state\n" +
		"`!list` list configured profiles\n" +
		"`!help` this message"
	s.ChannelMessageSend(m.ChannelID, help)
}
