package i18n

// russianMessages contains all Russian translations.
var russianMessages = map[string]string{
	// Error messages
	"error.generic":         "Что-то пошло не так. Попробуйте ещё раз.",
	"error.settings_failed": "Не удалось сохранить настройки чата. Попробуйте ещё раз.",
	"error.store_failed":    "Не удалось получить список стоп-слов. Попробуйте ещё раз.",

	// Captcha
	"captcha.prompt":          "Привет, %s! Нажми кнопку ниже, чтобы подтвердить, что ты не бот. У тебя %d сек.",
	"captcha.button":          "Я не бот",
	"captcha.default_name":    "пользователь",
	"captcha.not_for_you":     "Эта кнопка не для тебя.",
	"captcha.already_handled": "Капча уже пройдена или истекла.",
	"captcha.welcome":         "Добро пожаловать!",
	"captcha.unmute_failed":   "Ошибка снятия ограничений. Обратитесь к админам.",

	// Antiflood
	"flood.muted":     "Флуд обнаружен (лимит %d сообщ. за %d сек). Пользователь ограничен на %d минут.",
	"flood.muted.one": "Флуд обнаружен (лимит %d сообщ. за %d сек). Пользователь ограничен на %d минуту.",
	"flood.muted.few": "Флуд обнаружен (лимит %d сообщ. за %d сек). Пользователь ограничен на %d минуты.",

	// Commands
	"command.start":        "Привет! Я бот модерации. Добавь меня в группу и выдай права администратора.\n\nКоманды: /help",
	"command.help_private": "Команды доступны в группах. Добавь меня в группу и используй /help там.",
	"command.help_group": "Список команд (только для админов):\n" +
		"/addword <слово> — добавить стоп-слово\n" +
		"/removeword <слово> — удалить стоп-слово\n" +
		"/listwords — показать стоп-слова\n" +
		"/settings — настройки чата\n" +
		"/captcha on|off — капча для новых\n" +
		"/links on|off — фильтр ссылок\n" +
		"/mute 10m — мут (ответ на сообщение; 10m, 1h, 1d)\n" +
		"/unmute — снять мут (ответ на сообщение)\n" +
		"/kick — кик (ответ на сообщение)",
	"command.groups_only":        "Эта команда доступна только в группах.",
	"command.admins_only":        "Только администраторы могут использовать эту команду.",
	"command.bot_not_admin":      "Мне нужны права администратора.",
	"command.addword_usage":      "Использование: /addword <слово>",
	"command.addword_added":      "Стоп-слово «%s» добавлено.",
	"command.addword_exists":     "Слово «%s» уже в списке.",
	"command.removeword_usage":   "Использование: /removeword <слово>",
	"command.removeword_removed": "Стоп-слово «%s» удалено. Осталось: %s",
	"command.removeword_missing": "Слова «%s» нет в списке. Текущие: /listwords",
	"command.list_empty":         "Список стоп-слов пуст.",
	"command.list":               "Стоп-слова: %s",
	"command.list_more":          " … (всего %d)",
	"command.settings":           "Настройки чата:\nКапча для новых: %s\nФильтр ссылок: %s\nКоманды: /captcha on|off, /links on|off",
	"command.on":                 "вкл",
	"command.off":                "выкл",
	"command.captcha_usage":      "Использование: /captcha on или /captcha off",
	"command.captcha_set":        "Капча для новых участников: %s.",
	"command.links_usage":        "Использование: /links on или /links off",
	"command.links_set":          "Фильтр ссылок: %s.",
	"command.mute_reply":         "Ответьте на сообщение пользователя и введите /mute 10m (или 1h, 1d).",
	"command.mute_bad_duration":  "Неверный формат времени. Примеры: 10m, 1h, 1d",
	"command.muted":              "Пользователь ограничен на %s.",
	"command.mute_failed":        "Не удалось ограничить пользователя (права или он админ).",
	"command.unmute_reply":       "Ответьте на сообщение пользователя командой /unmute",
	"command.unmuted":            "Ограничения сняты.",
	"command.unmute_failed":      "Не удалось снять ограничения.",
	"command.kick_reply":         "Ответьте на сообщение пользователя командой /kick",
	"command.kicked":             "Пользователь исключён из чата.",
	"command.kick_failed":        "Не удалось исключить (права или он админ).",

	// Bot status messages
	"bot.log_connected": "📋 Логи бота подключены. События будут дублироваться сюда.",
}
