package engine

// Usage is the help text shown by rbhelp, one quiet line at a time.
const Usage = `リプレイを見てても乗り遅れないためのゲーム募集システムです。チーム分けはaochd.jpのサイトで手動入力してね。
コマンド一覧:
    [ホスト向け]
        mkroom@: 部屋作成。mkroom@部屋名。mkroom@2000以下、mkroom@無制限、など。省略可。の、ぬけ、解散、強制解散、全角スペース、の文字は使用できない。
        解散: 解散。濃い文字(PRIVMSG)で参加者が表示される（設定していれば各自ベルが鳴る）kaisanでも可。
        ggwp: 解散。薄い文字(NOTICE)で参加者が表示される（ベルが鳴らない）
        chcap@: 定員を設定。デフォルトは8が設定済み。chcap@6など。
        chrn@: （mkroomで書いた）部屋の説明文を更新。chrn@やっぱり1600以下、など
        chhost@: ホスト交代。chhost@名前
        yyk@: リプレイを我慢してAoCロビーを開き、IRCにいない新規さんなどを拾うときに使う。yyk@名前。「の」の代行。
        kick@: キックです。kick@名前
        chancel@: キックと同等。kickでは良心がとがめるとき。chancel@名前
    [一般向け]
        の: 参加。複数の部屋があるときは、の＠部屋番号、の＠１、no@2など。部屋を移るのにも使える。
        ぬけ: 部屋を抜ける。nukeでも可。
        rooms: 募集中の部屋一覧（既存のgameコマンドとは異なる）
        iam@名前: rakou → _rakou などニックネームが変わって正しく操作できないとき一時的に使用。
        強制解散@: ホストが寝たとき、解散忘れなどのときに使用。強制解散＠部屋番号、force_breakup@部屋番号。ほっといても24時間で消える。
        rbhelp: 上記の説明文を表示。`
