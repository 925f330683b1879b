package i18n

var englishMessages = map[string]string{
	"msg.start": "✅ modguard is active!",
	"msg.about": "🤖 modguard — group moderation & spam protection.",
	"msg.help": `📌 General Commands
/start → Activate bot
/help → Show this message
/about → About modguard

🔹 Group Management
/welcome on|off → Enable/disable welcome messages
/goodbye on|off → Enable/disable goodbye messages
/setwelcome <text> → Set welcome message
/setgoodbye <text> → Set goodbye message
/ban (reply) → Ban user
/unban (reply) → Unban user
/kick (reply) → Kick user
/mute (reply) → Mute user
/unmute (reply) → Unmute user
/promote (reply) → Promote user to admin
/demote (reply) → Demote user

🔹 Filters & Anti-Spam
/addfilter <word> <reply> → Add filter
/delfilter <word> → Remove filter
/filters → List filters
/setflood <number> → Max messages per 10 sec

🔹 Logging & Settings
/setlog <chat_id> → Set log channel
/unsetlog → Remove log channel
/logstatus → Show log channel

🔹 Name History
/history → Your past names
/history @username → Specific user history`,

	"denied": "🚫 Only admins can %s.",
	"usage":  "Usage: %s",

	"err.store":  "⚠️ Could not save settings, please try again.",
	"err.action": "⚠️ Action failed, check the bot's permissions.",

	"welcome.set": "✅ Welcome message set to:\n%s",
	"goodbye.set": "✅ Goodbye message set to:\n%s",
	"toggle":      "✅ %s %s.",

	"flood.set":     "✅ Flood limit set to %d messages per 10 seconds.",
	"flood.nan":     "Flood limit must be a number.",
	"flood.toolow":  "Flood limit must be at least 1.",
	"flood.muted":   "🚨 %s muted for flooding.",

	"filter.added":       "✅ Filter added for '%s'.",
	"filter.removed":     "✅ Filter '%s' removed.",
	"filter.notfound":    "No filter found for '%s'.",
	"filter.empty_reply": "Reply text cannot be empty.",
	"filters.none":       "No filters configured.",
	"filters.header":     "Current filters:",

	"log.set":     "✅ Log channel set to %s.",
	"log.removed": "✅ Log channel removed.",
	"log.status":  "ℹ️ Logging to chat ID: %d",
	"log.none":    "ℹ️ Logging channel not configured.",

	"mod.reply_needed": "Reply to a user to %s them.",
	"mod.banned":       "🚫 %s banned.",
	"mod.unbanned":     "✅ %s unbanned.",
	"mod.kicked":       "👢 %s kicked.",
	"mod.muted":        "🔇 %s muted.",
	"mod.unmuted":      "🔊 %s unmuted.",
	"mod.promoted":     "⭐ %s promoted to admin.",
	"mod.demoted":      "✅ %s demoted.",

	"history.self":      "Your name history:\n%s",
	"history.self.none": "No name history recorded yet.",
	"history.user":      "History of %s:\n%s",
	"history.notfound":  "User not found.",
}
