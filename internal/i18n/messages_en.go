package i18n

// englishMessages contains all English translations.
var englishMessages = map[string]string{
	// Error messages
	"error.generic":         "Something went wrong. Please try again.",
	"error.settings_failed": "Couldn't save the chat settings. Please try again.",
	"error.store_failed":    "Couldn't access the stopword list. Please try again.",

	// Captcha
	"captcha.prompt":          "Hi, %s! Press the button below to confirm you are not a bot. You have %d seconds.",
	"captcha.button":          "I'm not a bot",
	"captcha.default_name":    "newcomer",
	"captcha.not_for_you":     "This button is not for you.",
	"captcha.already_handled": "Captcha already passed or expired.",
	"captcha.welcome":         "Welcome!",
	"captcha.unmute_failed":   "Couldn't lift the restrictions. Please contact the admins.",

	// Antiflood
	"flood.muted":     "Flood detected (%d messages in %d seconds). User muted for %d minutes.",
	"flood.muted.one": "Flood detected (%d messages in %d seconds). User muted for %d minute.",

	// Commands
	"command.start": "Hi! I'm a moderation bot. Add me to a group and grant me administrator rights.\n\nCommands: /help",
	"command.help_private": "Commands work in groups. Add me to a group and use /help there.",
	"command.help_group": "Commands (admins only):\n" +
		"/addword <word> - add a stopword\n" +
		"/removeword <word> - remove a stopword\n" +
		"/listwords - show stopwords\n" +
		"/settings - chat settings\n" +
		"/captcha on|off - captcha for newcomers\n" +
		"/links on|off - links filter\n" +
		"/mute 10m - mute (reply to a message; 10m, 1h, 1d)\n" +
		"/unmute - lift a mute (reply to a message)\n" +
		"/kick - kick (reply to a message)",
	"command.groups_only":        "This command is only available in groups.",
	"command.admins_only":        "Only administrators can use this command.",
	"command.bot_not_admin":      "I need administrator rights for that.",
	"command.addword_usage":      "Usage: /addword <word>",
	"command.addword_added":      "Stopword «%s» added.",
	"command.addword_exists":     "«%s» is already in the list.",
	"command.removeword_usage":   "Usage: /removeword <word>",
	"command.removeword_removed": "Stopword «%s» removed. Remaining: %s",
	"command.removeword_missing": "«%s» is not in the list. Current list: /listwords",
	"command.list_empty":         "The stopword list is empty.",
	"command.list":               "Stopwords: %s",
	"command.list_more":          " … (total %d)",
	"command.settings":           "Chat settings:\nCaptcha for newcomers: %s\nLinks filter: %s\nCommands: /captcha on|off, /links on|off",
	"command.on":                 "on",
	"command.off":                "off",
	"command.captcha_usage":      "Usage: /captcha on or /captcha off",
	"command.captcha_set":        "Captcha for new members: %s.",
	"command.links_usage":        "Usage: /links on or /links off",
	"command.links_set":          "Links filter: %s.",
	"command.mute_reply":         "Reply to a user's message with /mute 10m (or 1h, 1d).",
	"command.mute_bad_duration":  "Invalid duration. Examples: 10m, 1h, 1d",
	"command.muted":              "User muted for %s.",
	"command.mute_failed":        "Couldn't mute the user (missing rights or the user is an admin).",
	"command.unmute_reply":       "Reply to a user's message with /unmute",
	"command.unmuted":            "Restrictions lifted.",
	"command.unmute_failed":      "Couldn't lift the restrictions.",
	"command.kick_reply":         "Reply to a user's message with /kick",
	"command.kicked":             "User removed from the chat.",
	"command.kick_failed":        "Couldn't remove the user (missing rights or the user is an admin).",

	// Bot status messages
	"bot.log_connected": "📋 Bot logs connected. Events will be mirrored here.",
}
