package rest

import "html/template"

var page = template.Must(template.New("index").Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>tunecrate</title>
<style>
  body { font-family: system-ui, sans-serif; max-width: 720px; margin: 2rem auto; padding: 0 1rem; background: #111; color: #eee; }
  h1 { font-size: 1.4rem; }
  input[type=text] { width: 60%; padding: .5rem; background: #222; color: #eee; border: 1px solid #444; border-radius: 4px; }
  button { padding: .5rem .8rem; margin-left: .3rem; background: #2d6cdf; color: #fff; border: 0; border-radius: 4px; cursor: pointer; }
  button.minor { background: #444; }
  ul { list-style: none; padding: 0; }
  li { display: flex; align-items: center; gap: .6rem; padding: .45rem 0; border-bottom: 1px solid #2a2a2a; }
  li .grow { flex: 1; min-width: 0; overflow: hidden; text-overflow: ellipsis; white-space: nowrap; }
  .muted { color: #888; font-size: .85rem; }
  .fav { color: #e8b339; }
  audio { width: 100%; margin-top: 1rem; }
  #status { min-height: 1.2rem; color: #9ad; font-size: .9rem; }
</style>
</head>
<body>
<h1>tunecrate</h1>

<div>
  <input type="text" id="q" placeholder="search for a track" autofocus>
  <button onclick="doSearch()">Search</button>
</div>
<div id="status"></div>
<ul id="results"></ul>

<h2>Library</h2>
<ul id="library"></ul>
<audio id="player" controls></audio>

<script>
const status = (msg) => { document.getElementById('status').textContent = msg || ''; };

const getJSON = async (url, opts) => {
  const res = await fetch(url, opts);
  const body = await res.json().catch(() => ({}));
  if (!res.ok) throw new Error(body.error || ('request failed: ' + res.status));
  return body;
};

async function doSearch() {
  const q = document.getElementById('q').value.trim();
  if (!q) return;
  status('searching...');
  try {
    const data = await getJSON('/api/search?q=' + encodeURIComponent(q));
    renderResults(data.results);
    status(data.results.length ? '' : 'no results');
  } catch (err) {
    status(err.message);
  }
}

function renderResults(results) {
  const ul = document.getElementById('results');
  ul.innerHTML = '';
  for (const track of results) {
    const li = document.createElement('li');
    const label = document.createElement('span');
    label.className = 'grow';
    label.textContent = track.artist + ' - ' + track.title;
    const btn = document.createElement('button');
    btn.textContent = 'Download';
    btn.onclick = () => download(track, btn);
    li.append(label, btn);
    ul.appendChild(li);
  }
}

async function download(track, btn) {
  btn.disabled = true;
  const poll = setInterval(async () => {
    try {
      const data = await getJSON('/api/download-progress/' + track.id);
      if (data.progress >= 0) btn.textContent = Math.round(data.progress) + '%';
    } catch (err) { /* keep polling */ }
  }, 1000);
  try {
    const result = await getJSON('/api/download?url=' + encodeURIComponent(track.url), { method: 'POST' });
    btn.textContent = result.status === 'exists' ? 'In library' : 'Done';
    loadLibrary();
  } catch (err) {
    btn.textContent = 'Failed';
    status(err.message);
  } finally {
    clearInterval(poll);
  }
}

async function loadLibrary() {
  try {
    const data = await getJSON('/api/library');
    const ul = document.getElementById('library');
    ul.innerHTML = '';
    for (const song of data.songs) {
      const li = document.createElement('li');
      const label = document.createElement('span');
      label.className = 'grow';
      label.textContent = song.artist + ' - ' + song.title;
      const dur = document.createElement('span');
      dur.className = 'muted';
      dur.textContent = song.duration ? Math.floor(song.duration / 60) + ':' + String(song.duration % 60).padStart(2, '0') : '';
      const play = document.createElement('button');
      play.textContent = 'Play';
      play.onclick = () => {
        const player = document.getElementById('player');
        player.src = '/api/stream/' + song.id;
        player.play();
      };
      const fav = document.createElement('button');
      fav.className = 'minor' + (song.favorite ? ' fav' : '');
      fav.textContent = song.favorite ? '★' : '☆';
      fav.onclick = async () => {
        await getJSON('/api/favorites/' + song.id, {
          method: 'POST',
          headers: { 'Content-Type': 'application/json' },
          body: JSON.stringify({ title: song.title, artist: song.artist }),
        });
        loadLibrary();
      };
      const del = document.createElement('button');
      del.className = 'minor';
      del.textContent = 'Delete';
      del.onclick = async () => {
        await getJSON('/api/library/' + song.id, { method: 'DELETE' });
        loadLibrary();
      };
      li.append(label, dur, play, fav, del);
      ul.appendChild(li);
    }
  } catch (err) {
    status(err.message);
  }
}

document.getElementById('q').addEventListener('keydown', (e) => {
  if (e.key === 'Enter') doSearch();
});

loadLibrary();
</script>
</body>
</html>
`
