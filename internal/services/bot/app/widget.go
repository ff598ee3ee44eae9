package server

import (
	"bytes"
	"html/template"
	"io"
	"net/http"

	apperrors "github.com/instaagents/discovery/internal/platform/errors"
	"github.com/instaagents/discovery/internal/services/bot/platform/httpx"
	"github.com/instaagents/discovery/internal/services/shared/i18nhttp"
)

// widgetLoaderJS is the embeddable loader customers paste into their
// pages. It floats a toggle button and an iframe pointed at /widget and
// resizes the iframe on request from the page inside.
const widgetLoaderJS = `(function () {
  'use strict';

  window.InstaAgentsChat = {
    init: function (config) {
      config = config || {};
      var settings = {
        position: config.position || 'bottom-right',
        theme: config.theme || 'light',
        locale: config.locale || '',
        apiUrl: config.apiUrl || window.location.origin
      };
      var side = settings.position === 'bottom-left' ? 'left' : 'right';

      var widgetUrl = settings.apiUrl + '/widget';
      if (settings.locale) {
        widgetUrl += '?lang=' + encodeURIComponent(settings.locale);
      }

      var iframe = document.createElement('iframe');
      iframe.id = 'insta-agents-chat';
      iframe.src = widgetUrl;
      iframe.style.cssText = 'position:fixed;bottom:90px;' + side + ':20px;' +
        'width:400px;height:600px;border:none;border-radius:10px;' +
        'box-shadow:0 5px 40px rgba(0,0,0,0.16);z-index:9999;display:none;';

      var toggle = document.createElement('button');
      toggle.id = 'insta-agents-toggle';
      toggle.innerHTML = '💬';
      toggle.style.cssText = 'position:fixed;bottom:20px;' + side + ':20px;' +
        'width:60px;height:60px;border:none;border-radius:50%;' +
        'background:#2563eb;color:#fff;font-size:24px;cursor:pointer;' +
        'box-shadow:0 2px 12px rgba(0,0,0,0.2);z-index:9998;';

      toggle.addEventListener('click', function () {
        var open = iframe.style.display !== 'none';
        iframe.style.display = open ? 'none' : 'block';
      });

      window.addEventListener('message', function (event) {
        if (event.data && event.data.type === 'insta-agents-resize') {
          iframe.style.height = event.data.height + 'px';
        }
      });

      document.body.appendChild(iframe);
      document.body.appendChild(toggle);
    }
  };
})();
`

type widgetPageData struct {
	Lang        string
	Locale      string
	Title       string
	Header      string
	Greeting    string
	Placeholder string
	Send        string
	ErrorText   string
	ConfirmDemo string
}

var widgetPageTemplate = template.Must(template.New("widget").Parse(`<!DOCTYPE html>
<html lang="{{.Lang}}">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
<style>
  * { margin: 0; padding: 0; box-sizing: border-box; }
  body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', sans-serif; }
  .chat-container { display: flex; flex-direction: column; height: 100vh; background: #f9fafb; }
  .chat-header { background: #2563eb; color: #fff; padding: 16px; font-weight: 600; }
  .messages { flex: 1; overflow-y: auto; padding: 16px; }
  .message { max-width: 80%; margin-bottom: 12px; padding: 10px 14px; border-radius: 12px; line-height: 1.4; white-space: pre-wrap; word-wrap: break-word; }
  .message.ai { background: #fff; border: 1px solid #e5e7eb; margin-right: auto; }
  .message.human { background: #2563eb; color: #fff; margin-left: auto; }
  .input-area { display: flex; gap: 8px; padding: 12px; background: #fff; border-top: 1px solid #e5e7eb; }
  .input-area input { flex: 1; padding: 10px 12px; border: 1px solid #d1d5db; border-radius: 8px; font-size: 14px; }
  .input-area input:focus { outline: none; border-color: #2563eb; }
  .input-area button { padding: 10px 18px; border: none; border-radius: 8px; background: #2563eb; color: #fff; font-size: 14px; cursor: pointer; }
  .input-area button:hover { background: #1d4ed8; }
  .input-area button:disabled { background: #9ca3af; cursor: not-allowed; }
</style>
</head>
<body>
<div class="chat-container">
  <div class="chat-header">{{.Header}}</div>
  <div class="messages" id="messages">
    <div class="message ai">{{.Greeting}}</div>
  </div>
  <form class="input-area" id="chat-form">
    <input type="text" id="message-input" placeholder="{{.Placeholder}}" autocomplete="off">
    <button type="submit" id="send-button">{{.Send}}</button>
  </form>
</div>
<script>
  var messagesEl = document.getElementById('messages');
  var form = document.getElementById('chat-form');
  var input = document.getElementById('message-input');
  var button = document.getElementById('send-button');
  var conversationId = localStorage.getItem('insta-agents-conversation-id');

  function addMessage(content, role) {
    var div = document.createElement('div');
    div.className = 'message ' + role;
    div.textContent = content;
    messagesEl.appendChild(div);
    messagesEl.scrollTop = messagesEl.scrollHeight;
  }

  async function sendMessage(message) {
    input.disabled = true;
    button.disabled = true;
    try {
      var res = await fetch('/chat', {
        method: 'POST',
        headers: { 'Content-Type': 'application/json' },
        body: JSON.stringify({
          conversation_id: conversationId,
          message: message,
          source: 'widget',
          locale: '{{.Locale}}'
        })
      });
      var data = await res.json();
      if (!res.ok) {
        addMessage((data.error && data.error.message) || '{{.ErrorText}}', 'ai');
        return;
      }
      conversationId = data.conversation_id;
      localStorage.setItem('insta-agents-conversation-id', conversationId);
      addMessage(data.response, 'ai');
      if (data.calendly_shown && data.response.includes('calendly.com')) {
        setTimeout(function () {
          if (confirm('{{.ConfirmDemo}}')) {
            var match = data.response.match(/https:\/\/calendly\.com[^\s]+/);
            if (match) {
              window.open(match[0], '_blank');
            }
          }
        }, 1000);
      }
    } catch (err) {
      addMessage('{{.ErrorText}}', 'ai');
    } finally {
      input.disabled = false;
      button.disabled = false;
      input.focus();
    }
  }

  form.addEventListener('submit', function (event) {
    event.preventDefault();
    var message = input.value.trim();
    if (!message) {
      return;
    }
    addMessage(message, 'human');
    input.value = '';
    sendMessage(message);
  });

  input.focus();
  window.parent.postMessage({ type: 'insta-agents-resize', height: document.body.scrollHeight }, '*');
</script>
</body>
</html>
`))

func (s *Server) handleWidgetScript(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := io.WriteString(w, widgetLoaderJS); err != nil {
		s.logger.Printf("write widget loader: %v", err)
	}
}

// handleWidgetPage serves the chat page the loader iframes. Copy comes
// from the message catalog in the resolved language; an explicit lang
// query persists the choice for the next visit.
func (s *Server) handleWidgetPage(w http.ResponseWriter, r *http.Request) {
	tag, persist := i18nhttp.ResolveTag(r)
	if persist {
		i18nhttp.SetLanguageCookie(w, tag)
	}
	locale, _ := i18nhttp.ResolveLocale(r)
	printer := i18nhttp.Printer(tag)

	var buf bytes.Buffer
	err := widgetPageTemplate.Execute(&buf, widgetPageData{
		Lang:        locale,
		Locale:      locale,
		Title:       printer.Sprintf("discovery.widget.title"),
		Header:      printer.Sprintf("discovery.widget.header"),
		Greeting:    printer.Sprintf("discovery.greeting"),
		Placeholder: printer.Sprintf("discovery.widget.placeholder"),
		Send:        printer.Sprintf("discovery.widget.send"),
		ErrorText:   printer.Sprintf("discovery.widget.error"),
		ConfirmDemo: printer.Sprintf("discovery.widget.confirm_demo"),
	})
	if err != nil {
		s.writeError(w, r, apperrors.Wrap(apperrors.CodeUnknown, "render widget page", err))
		return
	}
	if err := httpx.WriteHTML(w, http.StatusOK, buf.String()); err != nil {
		s.logger.Printf("write widget page: %v", err)
	}
}
